package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"terratrack_notifier/internal/app"
	"terratrack_notifier/internal/domain/user"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// Context is the part of telebot.Context the admin commands use.
type Context interface {
	Sender() *telebot.User
	Args() []string
	Send(what interface{}, opts ...interface{}) error
}

// AdminHandlers serves the operator commands of the bot.
type AdminHandlers struct {
	dispatcher      app.Dispatcher
	adminTelegramID int64
	runTimeout      time.Duration
	logger          *logrus.Entry
	now             func() time.Time
}

// NewAdminHandlers builds the admin commands. Previews are rendered for the
// current calendar day in location.
func NewAdminHandlers(dispatcher app.Dispatcher, adminTelegramID int64, runTimeout time.Duration, location *time.Location, baseLogger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{
		dispatcher:      dispatcher,
		adminTelegramID: adminTelegramID,
		runTimeout:      runTimeout,
		logger:          baseLogger,
		now:             app.ClockIn(location),
	}
}

// RegisterAdminHandlers registers /run_digest and /preview_digest on the bot.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/run_digest", func(c telebot.Context) error {
		return h.RunDigest(ctx, c)
	})
	b.Handle("/preview_digest", func(c telebot.Context) error {
		return h.PreviewDigest(ctx, c)
	})
}

func (h *AdminHandlers) authorized(c Context, handler string) (*logrus.Entry, bool) {
	var senderID int64
	if c.Sender() != nil {
		senderID = c.Sender().ID
	}
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": senderID,
	})
	handlerLogger.Info("Command received")

	if h.adminTelegramID == 0 || senderID != h.adminTelegramID {
		handlerLogger.Warn("Unauthorized access attempt")
		return handlerLogger, false
	}
	return handlerLogger, true
}

// RunDigest triggers a dispatch run and replies with its summary.
func (h *AdminHandlers) RunDigest(ctx context.Context, c Context) error {
	handlerLogger, ok := h.authorized(c, "/run_digest")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	runCtx := ctx
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	summary, err := h.dispatcher.Run(runCtx)
	if err != nil {
		handlerLogger.WithError(err).Error("Manual digest run failed")
		if summary == nil {
			return c.Send(fmt.Sprintf("Digest run failed: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Digest run interrupted: %s\nUsers: %d, sent: %d, skipped: %d, failed: %d",
			err.Error(), summary.TotalUsers, summary.Sent, summary.Skipped, summary.Failed))
	}

	handlerLogger.WithFields(logrus.Fields{
		"total_users": summary.TotalUsers,
		"sent":        summary.Sent,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	}).Info("Manual digest run completed")
	return c.Send(fmt.Sprintf("Digest run completed.\nUsers: %d, sent: %d, skipped: %d, failed: %d",
		summary.TotalUsers, summary.Sent, summary.Skipped, summary.Failed))
}

// PreviewDigest renders today's digest for one user without publishing it.
// Expected format: /preview_digest <user_id>
func (h *AdminHandlers) PreviewDigest(ctx context.Context, c Context) error {
	handlerLogger, ok := h.authorized(c, "/preview_digest")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Invalid command format. Use: /preview_digest <user_id>")
	}
	userID := args[0]
	handlerLogger = handlerLogger.WithField("user_id", userID)

	body, err := h.dispatcher.Preview(ctx, userID, h.now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.Send(fmt.Sprintf("User %s not found.", userID))
		}
		handlerLogger.WithError(err).Error("Failed to render digest preview")
		return c.Send(fmt.Sprintf("Failed to render preview: %s", err.Error()))
	}
	if body == "" {
		return c.Send(fmt.Sprintf("Nothing is due for %s in the digest window.", userID))
	}
	return c.Send(body)
}
