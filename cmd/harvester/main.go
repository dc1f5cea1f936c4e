// Package main wires together the hotel harvester binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/app"
	"github.com/JakeFAU/hotel-harvester/internal/config"
	"github.com/JakeFAU/hotel-harvester/internal/id/uuid"
	"github.com/JakeFAU/hotel-harvester/internal/logging"
	"github.com/JakeFAU/hotel-harvester/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID, err := uuid.New().NewID()
	if err != nil {
		logger.Error("run id generation failed", zap.Error(err))
		return 1
	}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			RunID:       runID,
			ProjectID:   cfg.Tracing.ProjectID,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			logger.Error("tracer init failed", zap.Error(err))
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	a, err := app.Build(ctx, cfg, runID, logger)
	if err != nil {
		logger.Error("build failed", zap.Error(err))
		return 1
	}
	defer a.Close()

	logger.Info("harvest started",
		zap.String("run_id", runID),
		zap.String("source", cfg.Source.Path),
		zap.Int("pool_size", cfg.Pool.Size),
	)
	if _, err := a.Run(ctx); err != nil {
		logger.Error("harvest failed", zap.Error(err))
		return 1
	}
	if ctx.Err() != nil {
		logger.Warn("harvest interrupted")
		return 130
	}
	logger.Info("shutdown complete")
	return 0
}
