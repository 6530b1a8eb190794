package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"terratrack_notifier/internal/domain/planting"
)

// planStepRecord is the JSON shape of a cached plan step in plantings.plan.
type planStepRecord struct {
	DueDate   string `json:"due_date"`
	Task      string `json:"task"`
	DayOffset int    `json:"day_offset"`
}

type PostgresPlantingRepository struct {
	db *sql.DB
}

func NewPostgresPlantingRepository(db *sql.DB) *PostgresPlantingRepository {
	return &PostgresPlantingRepository{db: db}
}

const plantingColumns = `planting_id, owner_id, crop_name, planting_date, batch_id, notes, plan, created_at, updated_at`

func (r *PostgresPlantingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*planting.Planting, error) {
	query := `SELECT ` + plantingColumns + `
               FROM plantings WHERE owner_id = $1 ORDER BY planting_date, planting_id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing plantings for owner: %w", err)
	}
	defer rows.Close()

	plantings := make([]*planting.Planting, 0)
	for rows.Next() {
		p, err := scanPlanting(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning planting: %w", err)
		}
		plantings = append(plantings, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plantings: %w", err)
	}
	return plantings, nil
}

func (r *PostgresPlantingRepository) Get(ctx context.Context, id string) (*planting.Planting, error) {
	query := `SELECT ` + plantingColumns + ` FROM plantings WHERE planting_id = $1`

	p, err := scanPlanting(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, planting.ErrNotFound
		}
		return nil, fmt.Errorf("error getting planting by ID: %w", err)
	}
	return p, nil
}

// Put inserts the planting or replaces every mutable column of an existing one.
func (r *PostgresPlantingRepository) Put(ctx context.Context, p *planting.Planting) error {
	plan, err := encodePlan(p.Plan)
	if err != nil {
		return err
	}
	query := `INSERT INTO plantings (planting_id, owner_id, crop_name, planting_date, batch_id, notes, plan)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (planting_id) DO UPDATE
               SET crop_name = EXCLUDED.crop_name, planting_date = EXCLUDED.planting_date,
                   batch_id = EXCLUDED.batch_id, notes = EXCLUDED.notes, plan = EXCLUDED.plan,
                   updated_at = NOW()
               RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.OwnerID, p.CropName, p.PlantingDate, p.BatchID, p.Notes, plan,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving planting: %w", err)
	}
	return nil
}

func (r *PostgresPlantingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plantings WHERE planting_id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting planting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading deleted row count: %w", err)
	}
	if n == 0 {
		return planting.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanting(row rowScanner) (*planting.Planting, error) {
	p := &planting.Planting{}
	var plan []byte
	if err := row.Scan(&p.ID, &p.OwnerID, &p.CropName, &p.PlantingDate, &p.BatchID, &p.Notes, &plan, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PlantingDate = time.Date(p.PlantingDate.Year(), p.PlantingDate.Month(), p.PlantingDate.Day(), 0, 0, 0, 0, time.UTC)

	steps, err := decodePlan(plan)
	if err != nil {
		// The plan is a cache; a corrupt one is dropped and regenerated on read.
		steps = nil
	}
	p.Plan = steps
	return p, nil
}

// encodePlan returns nil (SQL NULL) for a missing plan, otherwise the JSON document.
func encodePlan(plan []planting.PlanStep) (any, error) {
	if plan == nil {
		return nil, nil
	}
	records := make([]planStepRecord, len(plan))
	for i, step := range plan {
		records[i] = planStepRecord{
			DueDate:   step.DueDate.Format("2006-01-02"),
			Task:      step.Task,
			DayOffset: step.DayOffset,
		}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("error encoding plan: %w", err)
	}
	return string(b), nil
}

func decodePlan(raw []byte) ([]planting.PlanStep, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []planStepRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	plan := make([]planting.PlanStep, len(records))
	for i, rec := range records {
		due, err := time.Parse("2006-01-02", rec.DueDate)
		if err != nil {
			return nil, err
		}
		plan[i] = planting.PlanStep{DueDate: due, Task: rec.Task, DayOffset: rec.DayOffset}
	}
	return plan, nil
}
