package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/parley/pkg/gateway"
	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/redact"
	"github.com/harunnryd/parley/pkg/runner"
	"github.com/harunnryd/parley/pkg/session"
	"github.com/harunnryd/parley/pkg/transports/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; empty runs on defaults and environment")
	watch := flag.Bool("watch", true, "reload log level and redaction when the config file changes")
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	cfg, err := gateway.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.InitLogger(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	redact.SetEnabled(cfg.Privacy.RedactPII)

	observers := gateway.BuildObservers(cfg.Metrics, logger)
	defer observers.Close()

	pipeline, err := gateway.DefaultProviders().BuildPipeline(cfg.Vendors, observers.Observer)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	pipeline = gateway.ApplyDialogue(pipeline, cfg.Dialogue)
	logger.Info("providers_ready",
		slog.String("stt", pipeline.Transcriber.Name()),
		slog.String("llm", pipeline.Generator.Name()),
		slog.String("tts", pipeline.Synthesizer.Name()),
		slog.String("environment", cfg.Environment))

	registry := session.NewRegistry(session.Options{
		Config:   cfg.Session,
		Pipeline: pipeline,
		Observer: observers.Observer,
		Logger:   logger,
	})

	opts := []websocket.Option{websocket.WithLogger(logger)}
	if observers.Prometheus != nil {
		opts = append(opts, websocket.WithMetricsHandler(observers.Prometheus.Handler()))
	}
	server := websocket.New(cfg.Server, registry, opts...)

	if watch && configPath != "" {
		if err := gateway.WatchConfig(configPath, gateway.ApplyReloadable); err != nil {
			logger.Warn("config_watch_disabled", slog.String("error", err.Error()))
		}
	}

	lifecycle := runner.NewLifecycleRunner(registry, runner.Hooks{
		OnStart: server.Start,
		OnStop:  server.Shutdown,
	}, cfg.ShutdownTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = lifecycle.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("shutdown_incomplete", slog.String("error", err.Error()))
		return nil
	}
	return err
}
