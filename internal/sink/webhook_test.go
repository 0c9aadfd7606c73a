package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sentinelstack/latency-sentinel/internal/config"
	"github.com/sentinelstack/latency-sentinel/internal/models"
)

func testEvent() models.AlertEvent {
	return models.AlertEvent{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Target:    "http://backend-service:80",
		LatencyMS: 5000,
		Score:     0.87,
		Threshold: 0.62,
	}
}

func TestWebhookSinkGenericPayload(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSink([]config.WebhookConfig{{Type: "http", URL: srv.URL}}, nil)
	if err := s.Emit(context.Background(), testEvent()); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var payload struct {
		Alert models.AlertEvent `json:"alert"`
	}
	if err := json.Unmarshal(received, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Alert.LatencyMS != 5000 || payload.Alert.Score != 0.87 {
		t.Errorf("unexpected payload: %+v", payload.Alert)
	}
}

func TestWebhookSinkSlackPayload(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	s := NewWebhookSink([]config.WebhookConfig{{Type: "slack", URL: srv.URL}}, nil)
	if err := s.Emit(context.Background(), testEvent()); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var payload map[string]string
	if err := json.Unmarshal(received, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(payload["text"], "5000.00ms") {
		t.Errorf("slack text missing latency: %q", payload["text"])
	}
}

func TestWebhookSinkReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSink([]config.WebhookConfig{{Type: "http", URL: srv.URL}}, nil)
	if err := s.Emit(context.Background(), testEvent()); err == nil {
		t.Fatal("expected delivery error for HTTP 502")
	}
}

func TestWebhookSinkAttemptsAllTargets(t *testing.T) {
	var hits int
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	s := NewWebhookSink([]config.WebhookConfig{
		{Type: "http", URL: bad.URL},
		{Type: "http", URL: good.URL},
	}, nil)

	if err := s.Emit(context.Background(), testEvent()); err == nil {
		t.Fatal("expected an error from the failing target")
	}
	if hits != 1 {
		t.Fatalf("healthy target not attempted after failure, hits=%d", hits)
	}
}

type recordingSink struct {
	events []models.AlertEvent
}

func (r *recordingSink) Emit(_ context.Context, e models.AlertEvent) error {
	r.events = append(r.events, e)
	return nil
}

func TestMultiSinkFanout(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{a, b}

	if err := m.Emit(context.Background(), testEvent()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fanout incomplete: %d/%d", len(a.events), len(b.events))
	}
}
