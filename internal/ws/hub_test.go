package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinelstack/latency-sentinel/internal/models"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, h.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsVerdicts(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	h.Broadcast(models.Verdict{
		Sample: models.Sample{
			Timestamp: time.Now(),
			Latency:   5 * time.Second,
			Outcome:   models.OutcomeOK,
		},
		Score:     0.9,
		Anomalous: true,
		Threshold: 0.6,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Event != "anomaly" {
		t.Errorf("expected anomaly event, got %q", msg.Event)
	}
	if msg.LatencyMS != 5000 {
		t.Errorf("expected latency 5000ms, got %g", msg.LatencyMS)
	}
}

func TestHubNormalVerdictEvent(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	h.Broadcast(models.Verdict{
		Sample: models.Sample{Timestamp: time.Now(), Latency: 100 * time.Millisecond, Outcome: models.OutcomeOK},
		Score:  0.4,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Event != "verdict" {
		t.Errorf("expected verdict event, got %q", msg.Event)
	}
}

func TestHubCountAfterDisconnect(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	_ = conn.Close()
	waitForClients(t, h, 0)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	h := NewHub(nil)
	// Must not block or panic.
	h.Broadcast(models.Verdict{Sample: models.Sample{Timestamp: time.Now()}})
	if h.Count() != 0 {
		t.Fatalf("expected zero clients, got %d", h.Count())
	}
}
