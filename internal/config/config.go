package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the latency sentinel.
type Config struct {
	Probe    ProbeConfig    `yaml:"probe"`
	Detector DetectorConfig `yaml:"detector"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// ProbeConfig controls the probe target and cadence.
type ProbeConfig struct {
	TargetURL string        `yaml:"targetURL"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DetectorConfig controls the sliding window and the outlier model.
type DetectorConfig struct {
	WindowSize    int     `yaml:"windowSize"`
	MinTrainSize  int     `yaml:"minTrainSize"`
	Contamination float64 `yaml:"contamination"`
	// Threshold, when positive, overrides the contamination-derived score cut.
	Threshold          float64       `yaml:"threshold"`
	RetrainEvery       int           `yaml:"retrainEvery"`
	Trees              int           `yaml:"trees"`
	Subsample          int           `yaml:"subsample"`
	Seed               int64         `yaml:"seed"`
	AvailabilityWindow int           `yaml:"availabilityWindow"`
	RetrainBudget      time.Duration `yaml:"retrainBudget"`
}

// ServerConfig controls the gRPC health listener and the metrics/feed listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AlertsConfig groups the configured alert sinks.
type AlertsConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Valkey   ValkeyConfig    `yaml:"valkey"`
}

// WebhookConfig describes one webhook delivery target.
type WebhookConfig struct {
	// Type selects the payload shape: "slack" or "http" (generic JSON).
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

// ValkeyConfig controls the optional Valkey/Redis alert channel.
type ValkeyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Channel      string        `yaml:"channel"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
// The returned configuration has been validated; an error here is fatal.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Probe: ProbeConfig{
			Interval: 5 * time.Second,
			Timeout:  2 * time.Second,
		},
		Detector: DetectorConfig{
			WindowSize:         50,
			MinTrainSize:       20,
			Contamination:      0.1,
			RetrainEvery:       1,
			Trees:              100,
			Seed:               42,
			AvailabilityWindow: 50,
		},
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Alerts: AlertsConfig{
			Valkey: ValkeyConfig{
				Channel:      "latency-sentinel.alerts",
				DialTimeout:  2 * time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
				MaxRetries:   2,
			},
		},
	}
}

// Validate rejects configurations the monitor cannot safely run with.
func (c *Config) Validate() error {
	if c.Probe.TargetURL == "" {
		return fmt.Errorf("probe.targetURL is required")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive, got %s", c.Probe.Interval)
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Detector.WindowSize <= 0 {
		return fmt.Errorf("detector.windowSize must be positive, got %d", c.Detector.WindowSize)
	}
	if c.Detector.MinTrainSize <= 0 {
		return fmt.Errorf("detector.minTrainSize must be positive, got %d", c.Detector.MinTrainSize)
	}
	if c.Detector.MinTrainSize > c.Detector.WindowSize {
		return fmt.Errorf("detector.minTrainSize (%d) cannot exceed detector.windowSize (%d)",
			c.Detector.MinTrainSize, c.Detector.WindowSize)
	}
	if c.Detector.Contamination <= 0 || c.Detector.Contamination > 0.5 {
		return fmt.Errorf("detector.contamination must be in (0, 0.5], got %g", c.Detector.Contamination)
	}
	if c.Detector.Threshold < 0 {
		return fmt.Errorf("detector.threshold cannot be negative, got %g", c.Detector.Threshold)
	}
	if c.Detector.RetrainEvery <= 0 {
		return fmt.Errorf("detector.retrainEvery must be positive, got %d", c.Detector.RetrainEvery)
	}
	if c.Detector.Trees <= 0 {
		return fmt.Errorf("detector.trees must be positive, got %d", c.Detector.Trees)
	}
	if c.Alerts.Valkey.Enabled && c.Alerts.Valkey.Addr == "" {
		return fmt.Errorf("alerts.valkey.addr is required when the valkey sink is enabled")
	}
	for i, wh := range c.Alerts.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("alerts.webhooks[%d].url is required", i)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_TARGET_URL"); v != "" {
		cfg.Probe.TargetURL = v
	}
	if v := os.Getenv("SENTINEL_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probe.Interval = d
		}
	}
	if v := os.Getenv("SENTINEL_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probe.Timeout = d
		}
	}
	if v := os.Getenv("SENTINEL_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detector.WindowSize = n
		}
	}
	if v := os.Getenv("SENTINEL_MIN_TRAIN_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detector.MinTrainSize = n
		}
	}
	if v := os.Getenv("SENTINEL_CONTAMINATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detector.Contamination = f
		}
	}
	if v := os.Getenv("SENTINEL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detector.Threshold = f
		}
	}
	if v := os.Getenv("SENTINEL_RETRAIN_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detector.RetrainEvery = n
		}
	}
	if v := os.Getenv("SENTINEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_VALKEY_ADDR"); v != "" {
		cfg.Alerts.Valkey.Addr = v
	}
	if v := os.Getenv("SENTINEL_VALKEY_ENABLED"); v != "" {
		cfg.Alerts.Valkey.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SENTINEL_VALKEY_CHANNEL"); v != "" {
		cfg.Alerts.Valkey.Channel = v
	}
	if v := os.Getenv("SENTINEL_VALKEY_PASSWORD"); v != "" {
		cfg.Alerts.Valkey.Password = v
	}
}
