package scheduler

import (
	"context"
	"time"

	"terratrack_notifier/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DigestScheduler triggers the daily digest dispatch on a cron schedule.
type DigestScheduler struct {
	cronEngine  *cron.Cron
	dispatcher  app.Dispatcher
	logger      *logrus.Entry
	cronSpec    string
	runTimeout  time.Duration
	baseContext context.Context
}

func NewDigestScheduler(
	dispatcher app.Dispatcher,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 8 * * *" (8:00 AM daily)
	location *time.Location, // must match the dispatcher's clock
	runTimeout time.Duration,
) *DigestScheduler {
	if location == nil {
		location = time.UTC
	}
	return &DigestScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		dispatcher:  dispatcher,
		logger:      logger,
		cronSpec:    cronSpec,
		runTimeout:  runTimeout,
		baseContext: context.Background(),
	}
}

// Start registers the digest job and starts the cron engine.
// The job's context is derived from ctx, so cancelling ctx aborts a run in progress.
func (s *DigestScheduler) Start(ctx context.Context) error {
	s.baseContext = ctx
	s.logger.WithFields(logrus.Fields{
		"cron_spec": s.cronSpec,
		"timezone":  s.cronEngine.Location().String(),
	}).Info("Starting digest scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for daily digest.")
		s.RunOnce()
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Digest scheduler started.")
	return nil
}

// RunOnce performs a single dispatch run bounded by the configured timeout.
func (s *DigestScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(s.baseContext, s.runTimeout)
	defer cancel()

	summary, err := s.dispatcher.Run(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during daily digest dispatch")
	}
	if summary != nil {
		s.logger.WithFields(logrus.Fields{
			"total_users": summary.TotalUsers,
			"sent":        summary.Sent,
			"skipped":     summary.Skipped,
			"failed":      summary.Failed,
		}).Info("Daily digest dispatch finished")
	}
}

// Stop stops the cron engine and waits for a running job to finish.
func (s *DigestScheduler) Stop() context.Context {
	s.logger.Info("Stopping digest scheduler...")
	return s.cronEngine.Stop()
}
