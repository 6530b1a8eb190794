package ratelimit

import (
	"context"

	"terratrack_notifier/internal/domain/channel"

	"golang.org/x/time/rate"
)

// Publisher caps the publish rate of the wrapped channel, on top of the dispatcher's
// per-batch pause.
type Publisher struct {
	next    channel.Publisher
	limiter *rate.Limiter
}

// NewPublisher allows perSecond publishes per second with a burst of one.
// A non-positive rate disables limiting and returns next unchanged.
func NewPublisher(next channel.Publisher, perSecond float64) channel.Publisher {
	if perSecond <= 0 {
		return next
	}
	return &Publisher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (p *Publisher) Publish(ctx context.Context, msg channel.Message) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Publish(ctx, msg)
}
