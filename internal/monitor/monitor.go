package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentinelstack/latency-sentinel/internal/detector"
	"github.com/sentinelstack/latency-sentinel/internal/metrics"
	"github.com/sentinelstack/latency-sentinel/internal/models"
	"github.com/sentinelstack/latency-sentinel/internal/sink"
)

// Prober issues one timed request per cycle.
type Prober interface {
	Probe(ctx context.Context) models.Sample
	Target() string
}

// Broadcaster receives every classified sample, not only anomalies.
type Broadcaster interface {
	Broadcast(models.Verdict)
}

// Monitor drives the probe cadence and hands samples to the detector, one
// cycle at a time. There is never more than one probe in flight, and the
// detector is only ever touched from this loop.
type Monitor struct {
	logger   *slog.Logger
	prober   Prober
	detector *detector.Detector
	sinks    sink.Sink
	feed     Broadcaster
	interval time.Duration
}

// New wires the monitor pipeline. feed may be nil.
func New(logger *slog.Logger, prober Prober, det *detector.Detector, sinks sink.Sink, feed Broadcaster, interval time.Duration) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger,
		prober:   prober,
		detector: det,
		sinks:    sinks,
		feed:     feed,
		interval: interval,
	}
}

// Run probes on the configured cadence until ctx is cancelled. If a probe
// overruns the interval the next cycle starts immediately after it completes
// rather than stacking concurrent probes.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		slog.String("target", m.prober.Target()),
		slog.Duration("interval", m.interval))

	for {
		cycleStart := time.Now()
		m.cycle(ctx)
		if ctx.Err() != nil {
			m.logger.Info("monitor stopped")
			return nil
		}

		wait := m.interval - time.Since(cycleStart)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	sample := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		// Shutdown interrupted the probe; abandon the cycle without
		// touching the window.
		return
	}
	metrics.ObserveProbe(sample)

	verdict, ok := m.detector.Observe(sample)
	metrics.SetWindowSize(m.detector.WindowLen())
	metrics.SetErrorRate(m.detector.ErrorRate())

	if !ok {
		if !sample.OK() {
			m.logger.Warn("probe failed",
				slog.String("outcome", string(sample.Outcome)),
				slog.Float64("error_rate", m.detector.ErrorRate()))
		}
		return
	}

	metrics.ObserveVerdict(verdict)
	if m.feed != nil {
		m.feed.Broadcast(verdict)
	}

	if !verdict.Anomalous {
		m.logger.Debug("target stable",
			slog.Float64("latency_ms", verdict.Sample.LatencyMS()),
			slog.Float64("score", verdict.Score))
		return
	}

	m.logger.Warn("latency anomaly",
		slog.Float64("latency_ms", verdict.Sample.LatencyMS()),
		slog.Float64("score", verdict.Score),
		slog.Float64("threshold", verdict.Threshold))

	if err := m.sinks.Emit(ctx, models.NewAlertEvent(m.prober.Target(), verdict)); err != nil {
		m.logger.Error("alert delivery incomplete", slog.Any("error", err))
	}
}
