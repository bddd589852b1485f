package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/cardvault/internal/app"
	"github.com/allisson/cardvault/internal/config"
)

// shutdownTimeout bounds the graceful shutdown of the ops and metrics servers.
const shutdownTimeout = 30 * time.Second

// Service is a long-running server that can be stopped gracefully.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Loop is a background worker that runs until its context is canceled.
type Loop func(ctx context.Context) error

// RunServer starts the ops server, the metrics server, the outbox processor and the
// key rotation scheduler, and blocks until SIGINT/SIGTERM or the first failure.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server",
		slog.String("version", version),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("hsm_provider", cfg.HSMProvider),
	)

	defer CloseContainer(container, logger)

	// Initializes the HSM and every use case behind the servers.
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	outbox, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	keys, err := container.KeyLifecycleUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key lifecycle manager: %w", err)
	}

	services := []Service{server}
	if metricsServer != nil {
		services = append(services, metricsServer)
	}

	loops := []Loop{
		outbox.Start,
		func(ctx context.Context) error {
			return RunRotationScheduler(ctx, keys, cfg.RotationCheckInterval, logger)
		},
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return RunServices(ctx, services, loops, shutdownTimeout, logger)
}

// RunServices runs every service and loop until ctx is done or one of them fails,
// then shuts the services down within timeout. Loops ending with a context error
// are treated as a clean stop.
func RunServices(
	ctx context.Context,
	services []Service,
	loops []Loop,
	timeout time.Duration,
	logger *slog.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range services {
		g.Go(func() error {
			return s.Start(gctx)
		})
	}

	for _, loop := range loops {
		g.Go(func() error {
			if err := loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("service failed, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, s := range services {
			if err := s.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, err)
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
