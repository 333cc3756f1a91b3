package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"dompet/internal/amqp"
	"dompet/internal/backend"
	"dompet/internal/cache"
	"dompet/internal/cli"
	"dompet/internal/config"
	apphttp "dompet/internal/http"
	"dompet/internal/log"
	"dompet/internal/services"
)

const (
	categoryCacheTTL = 10 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)
	clock := cli.Clock(logger, cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(clock, logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	cacheManager := cache.NewManager()
	categories := cache.NewCategories(res.Store, categoryCacheTTL)
	cacheManager.Register(categories)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	// Without a broker the API still works; other processes just don't
	// hear about its writes.
	var (
		publisher  services.ChangePublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	expenses := services.NewExpenseService(res.Store, categories, publisher, clock, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Expenses:       expenses,
		Store:          res.Store,
		Categories:     categories,
		Clock:          clock,
		Logger:         logger,
		ListLimit:      cfg.ListLimit,
		Ready:          res.Ping,
		Audience:       cfg.GoogleClientID,
		TrustedProxies: cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	var relay func(context.Context) error
	if amqpClient != nil {
		relay = services.NewFeedRelay(amqpClient, res.Store, expenses.Origin(), logger).Run
	}

	logger.Info("Starting dompet server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone,
		"auth", cfg.GoogleClientID != "",
		log.FieldOperation, log.OpStartup)
	if err := serve(ctx, srv, relay, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serve runs the HTTP server and the optional feed relay until ctx is done
// or either of them fails. A failure of one stops the other, so a dead
// relay ends the process instead of leaving the API without a live feed.
func serve(ctx context.Context, srv httpServer, relay func(context.Context) error, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Feed relay stopped", log.FieldError, err)
				return fmt.Errorf("feed relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})
	return g.Wait()
}
