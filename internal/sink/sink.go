package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sentinelstack/latency-sentinel/internal/models"
)

// Sink receives alert events for anomalous verdicts. Delivery guarantees are
// the sink's concern; the monitor only hands events off.
type Sink interface {
	Emit(ctx context.Context, event models.AlertEvent) error
}

// MultiSink fans an event out to every configured sink and joins the errors.
type MultiSink []Sink

// Emit delivers the event to all member sinks. Every sink is attempted even
// when earlier ones fail.
func (m MultiSink) Emit(ctx context.Context, event models.AlertEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink emits alert events to the structured log stream.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit writes one warning-level alert record.
func (s *LogSink) Emit(_ context.Context, event models.AlertEvent) error {
	s.logger.Warn("latency anomaly detected",
		slog.Time("timestamp", event.Timestamp),
		slog.String("target", event.Target),
		slog.Float64("latency_ms", event.LatencyMS),
		slog.Float64("score", event.Score),
		slog.Float64("threshold", event.Threshold),
	)
	return nil
}
