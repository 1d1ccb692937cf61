package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/storage"
	"cashflow/internal/worker"
)

const rolloverInterval = 6 * time.Hour

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentWorker})
	logger.Info("Starting cashflow-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err,
			log.FieldExchange, cfg.AMQPExchange,
			log.FieldQueue, cfg.AMQPQueue)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ledger := services.NewLedger(repo,
		services.WithHorizon(cfg.ForecastHorizonMonths),
		services.WithLogger(logger))

	cacheManager := cache.NewManager()
	ledger.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	requestWorker := worker.NewRequestWorker(ledger, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Catch up on startup so a worker that was down over a month boundary
	// commits and settles before taking new requests.
	if last, ok, err := ledger.LastRolloverMonth(ctx); err != nil {
		logger.Warn("Could not read last rollover month", "error", err)
	} else if ok {
		logger.Info("Ledger last rolled over", log.FieldMonth, last.Key())
	}
	if err := ledger.RunMonthlyRollover(ctx, time.Now()); err != nil {
		logger.Error("Startup rollover failed", "error", err, log.FieldOperation, log.OpRollover)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeRequests(ctx, func(msg *amqp.RequestMessage) error {
			return requestWorker.HandleRequest(ctx, msg)
		})
	})

	// Periodic rollover keeps commits and settlements current even with an
	// idle queue.
	g.Go(func() error {
		ticker := time.NewTicker(rolloverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if err := ledger.RunMonthlyRollover(ctx, now); err != nil {
					logger.Error("Periodic rollover failed", "error", err, log.FieldOperation, log.OpRollover)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
