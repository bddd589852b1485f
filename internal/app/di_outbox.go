package app

import (
	"fmt"

	"github.com/allisson/cardvault/internal/config"
	outboxDomain "github.com/allisson/cardvault/internal/outbox/domain"
	outboxRepository "github.com/allisson/cardvault/internal/outbox/repository"
	outboxUsecase "github.com/allisson/cardvault/internal/outbox/usecase"
	vaultUsecase "github.com/allisson/cardvault/internal/vault/usecase"
)

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	err := c.initOnce("outboxRepo", &c.outboxRepoInit, func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for outbox repository: %w", err)
		}

		switch c.config.StoreDriver {
		case config.StoreDriverPostgres:
			c.outboxRepo = outboxRepository.NewPostgreSQLOutboxEventRepository(db)
		case config.StoreDriverMySQL:
			c.outboxRepo = outboxRepository.NewMySQLOutboxEventRepository(db)
		default:
			c.outboxRepo = outboxRepository.NewMemoryOutboxEventRepository()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.outboxRepo, nil
}

// RotationNotifier returns the notifier that queues key.rotation_due events.
func (c *Container) RotationNotifier() (*outboxUsecase.RotationNotifier, error) {
	err := c.initOnce("rotationNotifier", &c.rotationNotifierInit, func() error {
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			return fmt.Errorf("failed to get outbox repository for rotation notifier: %w", err)
		}
		c.rotationNotifier = outboxUsecase.NewRotationNotifier(outboxRepo, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.rotationNotifier, nil
}

// OutboxUseCase returns the outbox polling loop with every event processor registered.
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	err := c.initOnce("outboxUseCase", &c.outboxUseCaseInit, func() (err error) {
		c.outboxUseCase, err = c.initOutboxUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.outboxUseCase, nil
}

func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	logger := c.Logger()

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	vault, err := c.VaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get vault use case for outbox use case: %w", err)
	}

	keys, err := c.KeyLifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key lifecycle use case for outbox use case: %w", err)
	}

	router := outboxUsecase.NewEventRouter(logger)
	router.Handle(
		outboxDomain.EventTypeKeyRotationDue,
		vaultUsecase.NewRotationEventProcessor(vault, keys, logger),
	)

	useCaseConfig := outboxUsecase.Config{
		Interval:      c.config.OutboxInterval,
		BatchSize:     c.config.OutboxBatchSize,
		MaxRetries:    c.config.OutboxMaxRetries,
		RetryInterval: c.config.OutboxRetryInterval,
		Retention:     c.config.OutboxRetention,
	}

	return outboxUsecase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, router, logger), nil
}
