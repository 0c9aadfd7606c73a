package models

import "time"

// Outcome classifies the result of a single probe cycle.
type Outcome string

const (
	// OutcomeOK marks a probe that received a response within the timeout.
	OutcomeOK Outcome = "ok"
	// OutcomeTimeout marks a probe that exceeded the configured timeout.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeError marks a probe that failed at the connection or protocol level.
	OutcomeError Outcome = "error"
)

// Sample is one probe measurement. Immutable once recorded.
type Sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Outcome   Outcome
}

// LatencyMS returns the sample latency in milliseconds.
func (s Sample) LatencyMS() float64 {
	return float64(s.Latency) / float64(time.Millisecond)
}

// OK reports whether the sample is admissible into the detection window.
func (s Sample) OK() bool {
	return s.Outcome == OutcomeOK
}

// Verdict classifies a single successful sample against the current model.
// Verdicts are ephemeral: handed to the alert sinks and discarded.
type Verdict struct {
	Sample    Sample
	Score     float64
	Anomalous bool
	Threshold float64
}

// AlertEvent is the wire form of an anomalous verdict delivered to sinks.
type AlertEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	LatencyMS float64   `json:"latency_ms"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
}

// NewAlertEvent builds the sink payload for an anomalous verdict.
func NewAlertEvent(target string, v Verdict) AlertEvent {
	return AlertEvent{
		Timestamp: v.Sample.Timestamp,
		Target:    target,
		LatencyMS: v.Sample.LatencyMS(),
		Score:     v.Score,
		Threshold: v.Threshold,
	}
}
