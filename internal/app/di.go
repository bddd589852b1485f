// Package app provides the dependency injection container that assembles the vault,
// the key lifecycle manager, the HSM and the ops servers from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	accessService "github.com/allisson/cardvault/internal/access/service"
	accessUsecase "github.com/allisson/cardvault/internal/access/usecase"
	"github.com/allisson/cardvault/internal/config"
	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
	"github.com/allisson/cardvault/internal/database"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
	"github.com/allisson/cardvault/internal/http"
	keysUsecase "github.com/allisson/cardvault/internal/keys/usecase"
	"github.com/allisson/cardvault/internal/metrics"
	outboxUsecase "github.com/allisson/cardvault/internal/outbox/usecase"
	vaultUsecase "github.com/allisson/cardvault/internal/vault/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// HSM
	masterKeyChain *cryptoDomain.MasterKeyChain
	aeadManager    cryptoService.AEADManager
	kmsService     cryptoService.KMSService
	keyWrapper     hsmService.KeyWrapper
	keyStore       hsmService.KeyStore
	hsm            hsmService.Module

	// Repositories
	keyRepo          keysUsecase.KeyRepository
	auditRepo        accessUsecase.AuditRepository
	recordRepo       vaultUsecase.RecordRepository
	fingerprintRepo  vaultUsecase.FingerprintRepository
	outboxRepo       outboxUsecase.OutboxEventRepository
	rotationNotifier *outboxUsecase.RotationNotifier

	// Use Cases
	keyLifecycleUseCase keysUsecase.KeyLifecycleUseCase
	auditSigner         accessService.AuditSigner
	accessUseCase       accessUsecase.AccessUseCase
	vaultUseCase        vaultUsecase.VaultUseCase
	outboxUseCase       outboxUsecase.UseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                      sync.Mutex
	loggerInit              sync.Once
	dbInit                  sync.Once
	txManagerInit           sync.Once
	metricsProviderInit     sync.Once
	businessMetricsInit     sync.Once
	masterKeyChainInit      sync.Once
	aeadManagerInit         sync.Once
	kmsServiceInit          sync.Once
	keyWrapperInit          sync.Once
	keyStoreInit            sync.Once
	hsmInit                 sync.Once
	keyRepoInit             sync.Once
	auditRepoInit           sync.Once
	recordRepoInit          sync.Once
	fingerprintRepoInit     sync.Once
	outboxRepoInit          sync.Once
	rotationNotifierInit    sync.Once
	keyLifecycleUseCaseInit sync.Once
	auditSignerInit         sync.Once
	accessUseCaseInit       sync.Once
	vaultUseCaseInit        sync.Once
	outboxUseCaseInit       sync.Once
	httpServerInit          sync.Once
	metricsServerInit       sync.Once
	initErrors              map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// initOnce runs init through once and remembers its error under name, so every later
// call for the same component reports the original failure.
func (c *Container) initOnce(name string, once *sync.Once, init func() error) error {
	once.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// IsMemoryStore reports whether the container keeps all state in process memory.
func (c *Container) IsMemoryStore() bool {
	return c.config.StoreDriver == "" || c.config.StoreDriver == config.StoreDriverMemory
}

// DB returns the database connection. With the memory store it returns nil.
func (c *Container) DB() (*sql.DB, error) {
	err := c.initOnce("db", &c.dbInit, func() (err error) {
		c.db, err = c.initDB()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.initOnce("txManager", &c.txManagerInit, func() (err error) {
		c.txManager, err = c.initTxManager()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	err := c.initOnce("metricsProvider", &c.metricsProviderInit, func() (err error) {
		if !c.config.MetricsEnabled {
			return nil
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op recorder when
// metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.initOnce("businessMetrics", &c.businessMetricsInit, func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return nil
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create business metrics: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the ops HTTP server serving health and readiness probes.
func (c *Container) HTTPServer() (*http.Server, error) {
	err := c.initOnce("httpServer", &c.httpServerInit, func() (err error) {
		c.httpServer, err = c.initHTTPServer()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	err := c.initOnce("metricsServer", &c.metricsServerInit, func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			return nil
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.hsm != nil {
		if err := c.hsm.Close(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("hsm close: %w", err))
		}
	}

	if c.masterKeyChain != nil {
		c.masterKeyChain.Close()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	switch c.config.StoreDriver {
	case "", config.StoreDriverMemory:
		return nil, nil
	case config.StoreDriverPostgres, config.StoreDriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", c.config.StoreDriver)
	}

	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.StoreDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager. The memory store has no transactions.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	if db == nil {
		return database.NewNoopTxManager(), nil
	}
	return database.NewTxManager(db), nil
}

// initHTTPServer creates the ops server and installs its routes.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	module, err := c.HSM()
	if err != nil {
		return nil, fmt.Errorf("failed to get hsm for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, module, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, provider)
	return server, nil
}
