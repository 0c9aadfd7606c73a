package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelstack/latency-sentinel/internal/api"
	"github.com/sentinelstack/latency-sentinel/internal/config"
	"github.com/sentinelstack/latency-sentinel/internal/detector"
	"github.com/sentinelstack/latency-sentinel/internal/metrics"
	"github.com/sentinelstack/latency-sentinel/internal/monitor"
	"github.com/sentinelstack/latency-sentinel/internal/prober"
	"github.com/sentinelstack/latency-sentinel/internal/sink"
	"github.com/sentinelstack/latency-sentinel/internal/utils"
	"github.com/sentinelstack/latency-sentinel/internal/ws"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting latency-sentinel",
		slog.String("target", cfg.Probe.TargetURL),
		slog.Duration("interval", cfg.Probe.Interval))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	sinks := sink.MultiSink{sink.NewLogSink(logger)}
	if len(cfg.Alerts.Webhooks) > 0 {
		sinks = append(sinks, sink.NewWebhookSink(cfg.Alerts.Webhooks, logger))
	}
	if cfg.Alerts.Valkey.Enabled {
		valkeySink, err := sink.NewValkeySink(cfg.Alerts.Valkey)
		if err != nil {
			logger.Warn("valkey alert channel unavailable", slog.Any("error", err))
		} else {
			sinks = append(sinks, valkeySink)
		}
	}

	det := detector.New(cfg.Detector, logger)
	probe := prober.New(cfg.Probe.TargetURL, cfg.Probe.Timeout, logger)
	feed := ws.NewHub(logger)
	mon := monitor.New(logger, probe, det, sinks, feed, cfg.Probe.Interval)

	server, err := api.NewServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/ws", feed)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
				det.Tune(next.Detector.Contamination, next.Detector.Threshold, next.Detector.RetrainEvery)
			})
			if err != nil {
				logger.Warn("config watcher unavailable", slog.Any("error", err))
			}
		}()
	}

	go feed.Run(ctx)

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go func() {
		if runErr := mon.Run(ctx); runErr != nil {
			logger.Error("monitor loop exited", slog.Any("error", runErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("latency-sentinel stopped")
}
