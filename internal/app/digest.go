// internal/app/digest.go
package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"terratrack_notifier/internal/domain/planting"

	"github.com/sirupsen/logrus"
)

// DigestEntry is one bullet of a digest.
type DigestEntry struct {
	CropName string
	Task     string
	DueDate  time.Time
	DaysAway int
}

// Digest holds the due items of one user for one day, split by kind.
type Digest struct {
	Harvests []DigestEntry
	Tasks    []DigestEntry
}

func (d Digest) Empty() bool {
	return len(d.Harvests) == 0 && len(d.Tasks) == 0
}

// CollectDigest regenerates the plan of every planting and keeps the steps due
// between today and today+daysAhead inclusive. A step is a harvest when it is
// the last one of its plan. Plantings with an unknown crop are logged and left out.
func CollectDigest(calc *PlanCalculator, plantings []*planting.Planting, today time.Time, daysAhead int, log *logrus.Entry) Digest {
	var d Digest
	for _, p := range plantings {
		plan, err := calc.ComputePlan(p.PlantingDate, p.CropName)
		if err != nil {
			entry := log.WithFields(logrus.Fields{
				"planting_id": p.ID,
				"crop_name":   p.CropName,
			}).WithError(err)
			if errors.Is(err, ErrPlanNotFound) {
				entry.Warn("Unknown crop, planting omitted from digest")
			} else {
				entry.Error("Failed to compute plan, planting omitted from digest")
			}
			continue
		}

		for i, step := range plan {
			days := DaysUntil(step.DueDate, today)
			if days < 0 || days > daysAhead {
				continue
			}
			e := DigestEntry{CropName: p.CropName, Task: step.Task, DueDate: step.DueDate, DaysAway: days}
			if i == len(plan)-1 {
				d.Harvests = append(d.Harvests, e)
			} else {
				d.Tasks = append(d.Tasks, e)
			}
		}
	}
	sortEntries(d.Harvests)
	sortEntries(d.Tasks)
	return d
}

func sortEntries(entries []DigestEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.CropName != b.CropName {
			return a.CropName < b.CropName
		}
		return a.Task < b.Task
	})
}

// FormatDigest renders the digest body. Output is byte-for-byte reproducible for
// equal inputs. Sections without entries are left out.
func FormatDigest(displayName, product string, d Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", displayName)
	fmt.Fprintf(&b, "Here is your %s daily update about your plantings:\n\n", product)

	if len(d.Harvests) > 0 {
		b.WriteString("🌾 UPCOMING HARVESTS:\n")
		for _, e := range d.Harvests {
			fmt.Fprintf(&b, "  • %s: Harvest due %s (%s)\n", e.CropName, harvestWhen(e.DaysAway), FormatDate(e.DueDate))
		}
		b.WriteString("\n")
	}

	if len(d.Tasks) > 0 {
		b.WriteString("📅 UPCOMING TASKS:\n")
		for _, e := range d.Tasks {
			fmt.Fprintf(&b, "  • %s: %s due %s (%s)\n", e.CropName, e.Task, taskWhen(e.DaysAway), FormatDate(e.DueDate))
		}
		b.WriteString("\n")
	}

	b.WriteString("Login to your dashboard to see all your plantings and manage your garden.\n")
	return b.String()
}

// DigestSubject is a single ASCII line so it is accepted as an e-mail/SNS subject.
func DigestSubject(product string) string {
	return fmt.Sprintf("Your %s daily garden update", product)
}

func harvestWhen(days int) string {
	if days == 0 {
		return "today"
	}
	return fmt.Sprintf("in %d day(s)", days)
}

func taskWhen(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d day(s)", days)
	}
}
