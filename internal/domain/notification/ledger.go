// internal/domain/notification/ledger.go
package notification

import (
	"context"
	"time"
)

// SentLedger remembers which users already received their digest for a given day,
// so re-triggering a run on the same day does not publish twice.
type SentLedger interface {
	WasSent(ctx context.Context, day time.Time, userID string) (bool, error)
	MarkSent(ctx context.Context, day time.Time, userID, messageID string) error
}
