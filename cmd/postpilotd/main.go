// Command postpilotd runs the unattended publishing daemon.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/postpilot/internal/app"
	"github.com/and161185/postpilot/internal/config"
	"github.com/and161185/postpilot/internal/migrate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and wakes on a ticker to ask
// the scheduler whether a publishing run is due.
func main() {
	envFile := flag.String("env", ".env", "env file path")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	engine, err := app.Build(cfg, pool, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	if err := engine.EnsureRegistrations(ctx); err != nil {
		logger.Fatal("ensure platform registrations", zap.Error(err))
	}

	logger.Info("daemon running", zap.Duration("tick", cfg.TickInterval))
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	// Execute is idempotent: both due-checks run inside and skip themselves
	// when nothing is due. Run once on startup, then on every tick.
	run(ctx, engine, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case <-ticker.C:
			run(ctx, engine, logger)
		}
	}
}

func run(ctx context.Context, engine *app.App, logger *zap.Logger) {
	start := time.Now()
	engine.Scheduler.Execute(ctx)
	logger.Debug("tick executed", zap.Duration("took", time.Since(start)))
}
