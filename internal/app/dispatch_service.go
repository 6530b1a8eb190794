// internal/app/dispatch_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"terratrack_notifier/internal/domain/channel"
	"terratrack_notifier/internal/domain/notification"
	"terratrack_notifier/internal/domain/planting"
	"terratrack_notifier/internal/domain/user"
	"terratrack_notifier/internal/observability/metrics"

	"github.com/sirupsen/logrus"
)

const (
	DefaultDaysAhead   = 7
	DefaultBatchSize   = 25
	DefaultBatchPause  = 500 * time.Millisecond
	DefaultProductName = "TerraTrack"
)

// Dispatcher runs one daily digest sweep over every user.
type Dispatcher interface {
	Run(ctx context.Context) (*notification.Summary, error)
	Preview(ctx context.Context, userID string, today time.Time) (string, error)
}

// DispatchOptions are the recognised knobs of a run.
type DispatchOptions struct {
	DaysAhead     int           // look-ahead window in days
	BatchSize     int           // users per pacing batch
	BatchPause    time.Duration // delay between batches
	ChannelTarget string        // topic ARN or chat id
	ProductName   string
}

func DefaultDispatchOptions() DispatchOptions {
	return DispatchOptions{
		DaysAhead:   DefaultDaysAhead,
		BatchSize:   DefaultBatchSize,
		BatchPause:  DefaultBatchPause,
		ProductName: DefaultProductName,
	}
}

// DispatchService implements Dispatcher.
type DispatchService struct {
	userRepo     user.Repository
	plantingRepo planting.Repository
	calc         *PlanCalculator
	publisher    channel.Publisher
	ledger       notification.SentLedger
	metrics      *metrics.DispatchMetrics
	logger       *logrus.Entry
	opts         DispatchOptions
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

type DispatchOption func(*DispatchService)

// WithSentLedger enables duplicate-send protection across runs of the same day.
func WithSentLedger(l notification.SentLedger) DispatchOption {
	return func(s *DispatchService) { s.ledger = l }
}

func WithMetrics(m *metrics.DispatchMetrics) DispatchOption {
	return func(s *DispatchService) { s.metrics = m }
}

func WithClock(now func() time.Time) DispatchOption {
	return func(s *DispatchService) { s.now = now }
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) DispatchOption {
	return func(s *DispatchService) { s.sleep = sleep }
}

func NewDispatchService(
	ur user.Repository,
	pr planting.Repository,
	calc *PlanCalculator,
	pub channel.Publisher,
	opts DispatchOptions,
	logger *logrus.Entry,
	options ...DispatchOption,
) *DispatchService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProductName == "" {
		opts.ProductName = DefaultProductName
	}
	s := &DispatchService{
		userRepo:     ur,
		plantingRepo: pr,
		calc:         calc,
		publisher:    pub,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run enumerates every user and publishes one digest per eligible user.
// Per-user failures are counted and logged; only a missing channel target or a
// failure to enumerate users aborts the run. On cancellation the partial summary
// is returned together with the context error.
func (s *DispatchService) Run(ctx context.Context) (summary *notification.Summary, err error) {
	began := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRun(ctx, err, time.Since(began))
		}
	}()

	if s.opts.ChannelTarget == "" {
		return nil, ErrChannelTargetMissing
	}

	today := CalendarDate(s.now())
	runLogger := s.logger.WithField("run_date", FormatDate(today))
	runLogger.Info("Starting daily digest run")

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		runLogger.WithError(err).Error("Failed to enumerate users")
		return nil, fmt.Errorf("%w: list users: %w", ErrRepositoryUnavailable, err)
	}

	summary = &notification.Summary{TotalUsers: len(users)}
	runLogger.WithField("total_users", len(users)).Info("Users enumerated")

	for start := 0; start < len(users); start += s.opts.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.opts.BatchPause); err != nil {
				runLogger.WithError(err).Warn("Run interrupted between batches")
				return summary, err
			}
		}
		end := min(start+s.opts.BatchSize, len(users))
		for _, u := range users[start:end] {
			if err := ctx.Err(); err != nil {
				runLogger.WithError(err).Warn("Run interrupted between users")
				return summary, err
			}
			outcome := s.dispatchUser(ctx, u, today)
			summary.Record(outcome)
			if s.metrics != nil {
				s.metrics.RecordUser(ctx, outcome)
			}
		}
		runLogger.WithFields(logrus.Fields{
			"batch_start": start,
			"batch_end":   end,
		}).Debug("Batch processed")
	}

	runLogger.WithFields(logrus.Fields{
		"total_users": summary.TotalUsers,
		"sent":        summary.Sent,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	}).Info("Daily digest run finished")
	return summary, nil
}

// dispatchUser is the per-user boundary: nothing that happens here escapes as an error.
func (s *DispatchService) dispatchUser(ctx context.Context, u *user.Profile, today time.Time) (outcome notification.Outcome) {
	userLogger := s.logger.WithField("user_id", u.UserID)
	defer func() {
		if r := recover(); r != nil {
			userLogger.WithField("panic", r).Error("Recovered from panic while dispatching digest")
			outcome = notification.OutcomeFailed
		}
	}()

	if !u.Notifiable() {
		if !u.NotificationsEnabled {
			userLogger.Debug("Notifications disabled, skipping")
		} else {
			userLogger.Debug("No contact address, skipping")
		}
		return notification.OutcomeSkipped
	}

	if s.ledger != nil {
		sent, err := s.ledger.WasSent(ctx, today, u.UserID)
		if err != nil {
			userLogger.WithError(err).Warn("Failed to check sent ledger, treating digest as not sent")
		} else if sent {
			userLogger.Info("Digest already sent today, skipping")
			return notification.OutcomeSkipped
		}
	}

	body, ok, err := s.composeDigest(ctx, u, today, userLogger)
	if err != nil {
		userLogger.WithError(err).Error("Failed to fetch plantings")
		return notification.OutcomeFailed
	}
	if !ok {
		userLogger.Debug("Nothing due in the look-ahead window, skipping")
		return notification.OutcomeSkipped
	}

	msgID, err := s.publisher.Publish(ctx, channel.Message{
		Target:    s.opts.ChannelTarget,
		Recipient: u.ContactAddress,
		Subject:   DigestSubject(s.opts.ProductName),
		Body:      body,
	})
	if err != nil {
		userLogger.WithError(fmt.Errorf("%w: %w", ErrPublishFailure, err)).Error("Failed to publish digest")
		return notification.OutcomeFailed
	}
	userLogger.WithField("message_id", msgID).Info("Digest published")

	if s.ledger != nil {
		if err := s.ledger.MarkSent(ctx, today, u.UserID, msgID); err != nil {
			userLogger.WithError(err).Warn("Failed to record digest in sent ledger")
		}
	}
	return notification.OutcomeSent
}

// composeDigest returns the formatted digest and whether it has any entries.
func (s *DispatchService) composeDigest(ctx context.Context, u *user.Profile, today time.Time, logger *logrus.Entry) (string, bool, error) {
	plantings, err := s.plantingRepo.ListByOwner(ctx, u.UserID)
	if err != nil {
		return "", false, fmt.Errorf("%w: list plantings: %w", ErrRepositoryUnavailable, err)
	}
	digest := CollectDigest(s.calc, plantings, today, s.opts.DaysAhead, logger)
	if digest.Empty() {
		return "", false, nil
	}
	return FormatDigest(u.Greeting(), s.opts.ProductName, digest), true, nil
}

// Preview builds the digest a run would send to userID on today, without publishing.
// An empty string means nothing is due.
func (s *DispatchService) Preview(ctx context.Context, userID string, today time.Time) (string, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: get user: %w", ErrRepositoryUnavailable, err)
	}
	body, _, err := s.composeDigest(ctx, u, CalendarDate(today), s.logger.WithField("user_id", userID))
	return body, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
