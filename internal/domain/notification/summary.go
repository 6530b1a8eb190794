// internal/domain/notification/summary.go
package notification

// Outcome is the per-user result of a dispatch run.
type Outcome string

const (
	OutcomeSent    Outcome = "SENT"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
)

// Summary aggregates the outcomes of one dispatch run.
type Summary struct {
	TotalUsers int `json:"total_users"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Record adds one user outcome to the summary.
func (s *Summary) Record(o Outcome) {
	switch o {
	case OutcomeSent:
		s.Sent++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Processed is the number of users that reached an outcome.
// It is lower than TotalUsers only when a run was interrupted.
func (s *Summary) Processed() int {
	return s.Sent + s.Skipped + s.Failed
}
