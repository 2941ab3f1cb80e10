package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/backend"
	"budgetwatch/internal/cli"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/services"
	"budgetwatch/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil, applog.ComponentWorker), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting alert-worker")

	ctx, stop := cli.WithShutdownSignals(context.Background(), logger)
	defer stop()

	// Alerts are always kept in SQLite, whatever backend the API serves from.
	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", err)
	}
	defer repo.Close()

	alerts := worker.NewAlertWorker(repo, logger)

	var reconciler *worker.Reconciler
	if backend.BackendType(cfg.DataBackend) == backend.SQLiteBackend {
		budgets := services.NewBudgetService(repo, repo, nil, logger)
		reconciler = worker.NewReconciler(budgets, repo, worker.ReconcilerConfig{Interval: cfg.ReconcileInterval}, logger)
		if err := reconciler.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start reconciler", err)
		}
	} else {
		logger.Info("Reconciler disabled, transactions are not stored in SQLite", "backend", cfg.DataBackend)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeBudgetAlerts(gctx, alerts.HandleBudgetAlert)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP_URL not set, skipping message consumption")
	}

	g.Go(func() error {
		<-gctx.Done()
		if reconciler == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		return reconciler.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
