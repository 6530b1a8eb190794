package planting

import "time"

// PlanStep is a single dated care task derived from a crop template.
type PlanStep struct {
	DueDate   time.Time
	Task      string
	DayOffset int
}

// Planting is one crop instance owned by a user.
// Plan is a cache: it is always regenerable from PlantingDate and CropName.
type Planting struct {
	ID           string
	OwnerID      string
	CropName     string
	PlantingDate time.Time // calendar date, 00:00 UTC
	BatchID      string
	Notes        string
	Plan         []PlanStep
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category is the lifecycle bucket of a planting relative to a reference date.
type Category string

const (
	CategoryPast     Category = "PAST"
	CategoryUpcoming Category = "UPCOMING"
	CategoryOngoing  Category = "ONGOING"
)
