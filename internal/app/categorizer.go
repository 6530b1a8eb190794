package app

import (
	"time"

	"terratrack_notifier/internal/domain/planting"
)

// UpcomingWindowDays is the inclusive horizon within which a harvest counts as upcoming.
const UpcomingWindowDays = 7

// Categorize places a harvest date into its lifecycle bucket relative to ref.
// A harvest due today is still UPCOMING; it only becomes PAST the day after.
func Categorize(harvest, ref time.Time) planting.Category {
	days := DaysUntil(harvest, ref)
	switch {
	case days < 0:
		return planting.CategoryPast
	case days <= UpcomingWindowDays:
		return planting.CategoryUpcoming
	default:
		return planting.CategoryOngoing
	}
}
