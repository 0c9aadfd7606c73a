package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinelstack/latency-sentinel/internal/config"
	"github.com/sentinelstack/latency-sentinel/internal/models"
	"github.com/sentinelstack/latency-sentinel/internal/utils"
)

// WebhookSink posts alert events to configured webhook targets. Delivery
// failures are reported to the caller but must never halt the monitor loop.
type WebhookSink struct {
	targets []config.WebhookConfig
	client  *http.Client
	logger  *slog.Logger
}

// NewWebhookSink constructs a WebhookSink for the configured targets.
func NewWebhookSink(targets []config.WebhookConfig, logger *slog.Logger) *WebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSink{
		targets: targets,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Emit delivers the event to every target. All targets are attempted.
func (s *WebhookSink) Emit(ctx context.Context, event models.AlertEvent) error {
	var firstErr error
	for _, target := range s.targets {
		body, err := payloadFor(target.Type, event)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := s.post(ctx, target.URL, body); err != nil {
			s.logger.Error("webhook delivery failed",
				slog.String("type", target.Type),
				slog.Any("error", err))
			if firstErr == nil {
				firstErr = utils.NewAppError("webhook.emit", target.URL, err)
			}
			continue
		}
		s.logger.Debug("webhook delivered", slog.String("type", target.Type))
	}
	return firstErr
}

func payloadFor(kind string, event models.AlertEvent) ([]byte, error) {
	switch kind {
	case "slack":
		return json.Marshal(map[string]string{
			"text": fmt.Sprintf("[ANOMALY] %s latency %.2fms (score %.3f, threshold %.3f)",
				event.Target, event.LatencyMS, event.Score, event.Threshold),
		})
	default:
		return json.Marshal(map[string]any{"alert": event})
	}
}

func (s *WebhookSink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
