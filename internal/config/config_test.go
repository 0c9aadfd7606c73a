package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "probe:\n  targetURL: http://localhost:8080\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Probe.Interval != 5*time.Second {
		t.Errorf("expected default interval 5s, got %s", cfg.Probe.Interval)
	}
	if cfg.Probe.Timeout != 2*time.Second {
		t.Errorf("expected default timeout 2s, got %s", cfg.Probe.Timeout)
	}
	if cfg.Detector.WindowSize != 50 {
		t.Errorf("expected default window size 50, got %d", cfg.Detector.WindowSize)
	}
	if cfg.Detector.MinTrainSize != 20 {
		t.Errorf("expected default min train size 20, got %d", cfg.Detector.MinTrainSize)
	}
	if cfg.Detector.Contamination != 0.1 {
		t.Errorf("expected default contamination 0.1, got %g", cfg.Detector.Contamination)
	}
	if cfg.Detector.RetrainEvery != 1 {
		t.Errorf("expected default retrain stride 1, got %d", cfg.Detector.RetrainEvery)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
probe:
  targetURL: http://backend-service:80
  interval: 1s
  timeout: 500ms
detector:
  windowSize: 30
  minTrainSize: 10
  contamination: 0.05
  retrainEvery: 5
alerts:
  webhooks:
    - type: slack
      url: https://hooks.example.com/T000/B000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Probe.TargetURL != "http://backend-service:80" {
		t.Errorf("unexpected target: %s", cfg.Probe.TargetURL)
	}
	if cfg.Probe.Interval != time.Second {
		t.Errorf("unexpected interval: %s", cfg.Probe.Interval)
	}
	if cfg.Detector.WindowSize != 30 || cfg.Detector.MinTrainSize != 10 {
		t.Errorf("unexpected window config: %d/%d", cfg.Detector.WindowSize, cfg.Detector.MinTrainSize)
	}
	if len(cfg.Alerts.Webhooks) != 1 || cfg.Alerts.Webhooks[0].Type != "slack" {
		t.Errorf("unexpected webhooks: %+v", cfg.Alerts.Webhooks)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "probe:\n  targetURL: http://localhost:8080\n")
	t.Setenv("SENTINEL_TARGET_URL", "http://override:9090")
	t.Setenv("SENTINEL_PROBE_INTERVAL", "250ms")
	t.Setenv("SENTINEL_CONTAMINATION", "0.2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Probe.TargetURL != "http://override:9090" {
		t.Errorf("env target override not applied: %s", cfg.Probe.TargetURL)
	}
	if cfg.Probe.Interval != 250*time.Millisecond {
		t.Errorf("env interval override not applied: %s", cfg.Probe.Interval)
	}
	if cfg.Detector.Contamination != 0.2 {
		t.Errorf("env contamination override not applied: %g", cfg.Detector.Contamination)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing target", func(c *Config) { c.Probe.TargetURL = "" }},
		{"zero interval", func(c *Config) { c.Probe.Interval = 0 }},
		{"negative timeout", func(c *Config) { c.Probe.Timeout = -time.Second }},
		{"zero window", func(c *Config) { c.Detector.WindowSize = 0 }},
		{"min train above window", func(c *Config) { c.Detector.MinTrainSize = 60 }},
		{"contamination too high", func(c *Config) { c.Detector.Contamination = 0.7 }},
		{"zero retrain stride", func(c *Config) { c.Detector.RetrainEvery = 0 }},
		{"valkey enabled without addr", func(c *Config) { c.Alerts.Valkey.Enabled = true }},
		{"webhook without url", func(c *Config) {
			c.Alerts.Webhooks = []WebhookConfig{{Type: "http"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Probe.TargetURL = "http://localhost:8080"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
