package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/backend"
	"budgetwatch/internal/cache"
	"budgetwatch/internal/cli"
	apphttp "budgetwatch/internal/http"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/services"
	"budgetwatch/internal/telemetry"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil, applog.ComponentApp), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.WithShutdownSignals(context.Background(), logger)
	defer stop()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize telemetry", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	opts := []services.Option{
		services.WithRecorder(tel),
		services.WithCacheTTL(cfg.CacheTTL),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer client.Close()
		opts = append(opts, services.WithPublisher(client))
		logger.Info("Budget alert publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP_URL not set, budget alerts will not be published")
	}

	txService := services.NewTransactionService(store.Backend, store.Backend, logger, opts...)
	budgetService := services.NewBudgetService(store.Backend, txService, tel, logger)

	caches := cache.NewManager(logger)
	if snapshots := txService.Snapshots(); snapshots != nil {
		caches.Register(snapshots)
	}
	caches.StartCleanup(ctx, time.Minute)
	defer caches.Stop()

	deps := apphttp.Deps{
		Transactions:       txService,
		Budgets:            budgetService,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if p, ok := store.Backend.(pinger); ok {
		deps.Ready = p.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	var metricsSrv *http.Server
	if cfg.MetricsPort != "" {
		metricsSrv = tel.MetricsServer(cfg.MetricsPort)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetwatch server", "port", cfg.Port, "backend", store.Type.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("Starting metrics server", "port", cfg.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()

		errs := []error{srv.Shutdown(shutdownCtx)}
		if metricsSrv != nil {
			errs = append(errs, metricsSrv.Shutdown(shutdownCtx))
		}
		errs = append(errs, tel.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
