package httpapi

import (
	"time"

	"terratrack_notifier/internal/app"
	"terratrack_notifier/internal/domain/planting"
)

type planStepResponse struct {
	DueDate   string `json:"due_date"`
	Task      string `json:"task"`
	DayOffset int    `json:"day_offset"`
}

type plantingResponse struct {
	ID           string             `json:"planting_id"`
	OwnerID      string             `json:"user_id"`
	CropName     string             `json:"crop_name"`
	PlantingDate string             `json:"planting_date"`
	BatchID      string             `json:"batch_id"`
	Notes        string             `json:"notes,omitempty"`
	Plan         []planStepResponse `json:"plan"`
	CreatedAt    *time.Time         `json:"created_at,omitempty"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
}

type plantingViewResponse struct {
	plantingResponse
	HarvestDate *string `json:"harvest_date"`
	DaysLeft    *int    `json:"days_left"`
	Category    string  `json:"category"`
}

type overviewResponse struct {
	Past     []plantingViewResponse `json:"past"`
	Upcoming []plantingViewResponse `json:"upcoming"`
	Ongoing  []plantingViewResponse `json:"ongoing"`
}

func toPlantingResponse(p *planting.Planting) plantingResponse {
	resp := plantingResponse{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		CropName:     p.CropName,
		PlantingDate: app.FormatDate(p.PlantingDate),
		BatchID:      p.BatchID,
		Notes:        p.Notes,
		Plan:         make([]planStepResponse, 0, len(p.Plan)),
	}
	for _, step := range p.Plan {
		resp.Plan = append(resp.Plan, planStepResponse{
			DueDate:   app.FormatDate(step.DueDate),
			Task:      step.Task,
			DayOffset: step.DayOffset,
		})
	}
	if !p.CreatedAt.IsZero() {
		created := p.CreatedAt
		resp.CreatedAt = &created
	}
	if !p.UpdatedAt.IsZero() {
		updated := p.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func toViewResponses(views []app.PlantingView) []plantingViewResponse {
	out := make([]plantingViewResponse, 0, len(views))
	for _, v := range views {
		r := plantingViewResponse{
			plantingResponse: toPlantingResponse(v.Planting),
			DaysLeft:         v.DaysLeft,
			Category:         string(v.Category),
		}
		if v.HarvestDate != nil {
			s := app.FormatDate(*v.HarvestDate)
			r.HarvestDate = &s
		}
		out = append(out, r)
	}
	return out
}

func toOverviewResponse(o *app.Overview) overviewResponse {
	return overviewResponse{
		Past:     toViewResponses(o.Past),
		Upcoming: toViewResponses(o.Upcoming),
		Ongoing:  toViewResponses(o.Ongoing),
	}
}
