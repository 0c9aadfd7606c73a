package prober

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/sentinelstack/latency-sentinel/internal/models"
)

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 4 << 10

// Prober issues timed requests against a single target endpoint. It never
// fails fatally: every probe produces a Sample, with failures expressed as
// timeout or error outcomes.
type Prober struct {
	target  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// New constructs a Prober for the given target URL and per-probe timeout.
func New(target string, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		target:  target,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Target returns the probed URL.
func (p *Prober) Target() string {
	return p.target
}

// Probe issues one GET against the target and measures the elapsed time from
// request send to first response byte. On timeout the sample carries the
// timeout bound as its latency, mirroring a worst-case response; connection
// and protocol errors carry no latency.
func (p *Prober) Probe(ctx context.Context) models.Sample {
	now := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, p.target, nil)
	if err != nil {
		p.logger.Error("building probe request failed", slog.Any("error", err))
		return models.Sample{Timestamp: now, Outcome: models.OutcomeError}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		outcome := models.OutcomeError
		var latency time.Duration
		if isTimeout(err) {
			outcome = models.OutcomeTimeout
			latency = p.timeout
		}
		p.logger.Debug("probe failed",
			slog.String("target", p.target),
			slog.String("outcome", string(outcome)),
			slog.Any("error", err))
		return models.Sample{Timestamp: now, Latency: latency, Outcome: outcome}
	}
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
		_ = resp.Body.Close()
	}()

	latency := time.Since(start)
	if !firstByte.IsZero() {
		latency = firstByte.Sub(start)
	}

	// A 5xx answer is a failing target, not a healthy latency measurement.
	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Debug("probe returned server error",
			slog.String("target", p.target),
			slog.Int("status", resp.StatusCode))
		return models.Sample{Timestamp: now, Latency: latency, Outcome: models.OutcomeError}
	}

	return models.Sample{Timestamp: now, Latency: latency, Outcome: models.OutcomeOK}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
