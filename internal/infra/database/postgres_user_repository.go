package database

import (
	"context"
	"database/sql"
	"fmt"

	"terratrack_notifier/internal/domain/user"
)

// defaultUserPageSize bounds a single read so enumeration never holds one long scan
// open against the shared users table.
const defaultUserPageSize = 100

type PostgresUserRepository struct {
	db       *sql.DB
	pageSize int
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, pageSize: defaultUserPageSize}
}

// ListAll returns every user, read page by page in user_id order (keyset pagination).
func (r *PostgresUserRepository) ListAll(ctx context.Context) ([]*user.Profile, error) {
	users := make([]*user.Profile, 0)
	after := ""
	for {
		page, err := r.listPage(ctx, after, r.pageSize)
		if err != nil {
			return nil, err
		}
		users = append(users, page...)
		if len(page) < r.pageSize {
			return users, nil
		}
		after = page[len(page)-1].UserID
	}
}

func (r *PostgresUserRepository) listPage(ctx context.Context, after string, limit int) ([]*user.Profile, error) {
	query := `SELECT user_id, display_name, email, notifications_enabled
               FROM users WHERE user_id > $1 ORDER BY user_id LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	page := make([]*user.Profile, 0, limit)
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		page = append(page, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return page, nil
}

func (r *PostgresUserRepository) Get(ctx context.Context, userID string) (*user.Profile, error) {
	query := `SELECT user_id, display_name, email, notifications_enabled FROM users WHERE user_id = $1`
	u, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) SetNotificationsEnabled(ctx context.Context, userID string, enabled bool) error {
	query := `UPDATE users SET notifications_enabled = $1, updated_at = NOW() WHERE user_id = $2`
	res, err := r.db.ExecContext(ctx, query, enabled, userID)
	if err != nil {
		return fmt.Errorf("error updating notification preference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading updated row count: %w", err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanProfile(row rowScanner) (*user.Profile, error) {
	u := &user.Profile{}
	var displayName, email sql.NullString
	if err := row.Scan(&u.UserID, &displayName, &email, &u.NotificationsEnabled); err != nil {
		return nil, err
	}
	u.DisplayName = displayName.String
	u.ContactAddress = email.String
	return u, nil
}
