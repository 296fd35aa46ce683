package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cbycsb/internal/ycsb"
	"cbycsb/internal/ycsb/adapter"
	"cbycsb/internal/ycsb/metrics"
	"cbycsb/internal/ycsb/tracing"
	"cbycsb/internal/ycsb/workload"
)

var version = "dev"

type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	CPUProfile string `env:"CPU_PROFILE"`

	Couchbase adapter.Config
	Workload  workload.Config
	Metrics   metrics.ServerConfig
	Tracing   tracing.Config
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("benchmark failed", zap.Error(err))
		pprof.StopCPUProfile()
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metrics.NewRegistry()
	registry.SetSystemInfo(version, time.Now().Format(time.RFC3339))

	// Start stops the server itself once ctx is cancelled.
	metricsServer := metrics.NewServer(cfg.Metrics, registry, logger)
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsServer.Start(ctx); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		cancel()
		<-metricsDone
	}()

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	open := func() (ycsb.DB, error) {
		a, err := adapter.Open(cfg.Couchbase, logger)
		if err != nil {
			return nil, err
		}
		return adapter.NewTracedDB(adapter.NewMetricsDB(a, registry), tracer), nil
	}

	// fail fast on configuration or connection problems before spawning workers
	probe, err := open()
	if err != nil {
		switch {
		case errors.Is(err, ycsb.ErrConfiguration):
			return fmt.Errorf("invalid couchbase configuration: %w", err)
		case errors.Is(err, ycsb.ErrConnection):
			return fmt.Errorf("could not reach couchbase at %s: %w", cfg.Couchbase.URIs, err)
		default:
			return err
		}
	}
	if err := probe.Cleanup(); err != nil {
		logger.Warn("failed to close probe connection", zap.Error(err))
	}
	metricsServer.SetReady(true)

	runner, err := workload.NewRunner(cfg.Workload, open, logger, registry)
	if err != nil {
		return err
	}

	summaries, err := runner.Execute(ctx)
	for _, s := range summaries {
		fmt.Printf("[%s] operations=%d elapsed=%.2fs throughput=%.1f ops/s\n",
			s.Phase, s.Total(), s.Elapsed.Seconds(), s.Throughput())
		for op, c := range s.Operations {
			fmt.Printf("[%s] %s ok=%d error=%d\n", s.Phase, op, c.OK, c.Error)
		}
	}

	return err
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", level, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(zap.AddCaller())
}
