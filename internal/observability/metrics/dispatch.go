package metrics

import (
	"context"
	"time"

	"terratrack_notifier/internal/domain/notification"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dispatchMeterName = "digest.dispatcher"
)

type DispatchMetrics struct {
	usersProcessed metric.Int64Counter
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
}

// NewDispatchMetrics registers the dispatcher instruments on the global meter provider.
func NewDispatchMetrics() (*DispatchMetrics, error) {
	meter := otel.Meter(dispatchMeterName)

	usersProcessed, err := meter.Int64Counter(
		"digest_users_total",
		metric.WithDescription("Users processed by the digest dispatcher, by outcome"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	runsTotal, err := meter.Int64Counter(
		"digest_runs_total",
		metric.WithDescription("Digest dispatch runs, by result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"digest_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of a digest run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			1, 5, 10, 30, 60, 120, 300, 600, 900,
		),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		usersProcessed: usersProcessed,
		runsTotal:      runsTotal,
		runDuration:    runDuration,
	}, nil
}

func (m *DispatchMetrics) RecordUser(ctx context.Context, outcome notification.Outcome) {
	m.usersProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
	))
}

func (m *DispatchMetrics) RecordRun(ctx context.Context, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}
