package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/metrics"
)

// UseCaseEvent captures lightweight execution telemetry for a service use case.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	logger *zap.Logger
}

// NewLogUseCaseObserver writes service use-case events to logger.
func NewLogUseCaseObserver(logger *zap.Logger) UseCaseObserver {
	if logger == nil {
		return NoopUseCaseObserver{}
	}
	return &logUseCaseObserver{logger: logger}
}

func (o *logUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	fields := make([]zap.Field, 0, 3+len(event.Fields))
	fields = append(fields,
		zap.String("use_case", event.Name),
		zap.Int64("duration_ms", event.Duration.Milliseconds()),
		zap.Bool("success", event.Success),
	)
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	if event.Err != nil {
		o.logger.Error("service_use_case", append(fields, zap.Error(event.Err))...)
		return
	}
	o.logger.Info("service_use_case", fields...)
}

// MetricsUseCaseObserver records use-case durations in prometheus.
type MetricsUseCaseObserver struct{}

func (MetricsUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	metrics.ObserveUseCase(event.Name, event.Success, event.Duration)
}

// multiObserver fans an event out to every observer in order.
type multiObserver []UseCaseObserver

func (m multiObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	for _, obs := range m {
		obs.ObserveUseCase(ctx, event)
	}
}

// observersWithMetrics drops nil observers and always appends the metrics
// observer.
func observersWithMetrics(observers []UseCaseObserver) UseCaseObserver {
	out := make(multiObserver, 0, len(observers)+1)
	for _, obs := range observers {
		if obs != nil {
			out = append(out, obs)
		}
	}
	return append(out, MetricsUseCaseObserver{})
}
