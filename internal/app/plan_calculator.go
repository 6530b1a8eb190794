package app

import (
	"fmt"
	"sort"
	"time"

	"terratrack_notifier/internal/domain/crop"
	"terratrack_notifier/internal/domain/planting"
)

const dateLayout = "2006-01-02"

// PlanCalculator turns a planting date and a crop name into a dated care plan.
// It holds no mutable state; the crop store is injected and read-only.
type PlanCalculator struct {
	crops *crop.Store
}

func NewPlanCalculator(crops *crop.Store) *PlanCalculator {
	return &PlanCalculator{crops: crops}
}

// ComputePlan returns one step per template step, ordered by day offset.
// Steps sharing an offset keep their template order.
func (c *PlanCalculator) ComputePlan(plantingDate time.Time, cropName string) ([]planting.PlanStep, error) {
	tmpl, ok := c.crops.Lookup(cropName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, cropName)
	}

	steps := tmpl.Steps
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].DayOffset < steps[j].DayOffset
	})

	start := CalendarDate(plantingDate)
	plan := make([]planting.PlanStep, 0, len(steps))
	for _, step := range steps {
		plan = append(plan, planting.PlanStep{
			DueDate:   start.AddDate(0, 0, step.DayOffset),
			Task:      step.Task,
			DayOffset: step.DayOffset,
		})
	}
	return plan, nil
}

// Crops exposes the names the calculator can plan for.
func (c *PlanCalculator) Crops() []string {
	return c.crops.Names()
}

// HarvestDate is the due date of the last plan step.
func HarvestDate(plan []planting.PlanStep) (time.Time, bool) {
	if len(plan) == 0 {
		return time.Time{}, false
	}
	return plan[len(plan)-1].DueDate, true
}

// DaysUntil is the signed number of calendar days from ref to date.
// Negative means date lies in the past.
func DaysUntil(date, ref time.Time) int {
	return int(CalendarDate(date).Sub(CalendarDate(ref)) / (24 * time.Hour))
}

// CalendarDate drops the clock and zone of t, keeping its calendar day at 00:00 UTC.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ClockIn returns a clock reading the current time in loc, so that CalendarDate
// of its result is the calendar day in that zone.
func ClockIn(loc *time.Location) func() time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func samePlan(a, b []planting.PlanStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Task != b[i].Task || a[i].DayOffset != b[i].DayOffset || !a[i].DueDate.Equal(b[i].DueDate) {
			return false
		}
	}
	return true
}
