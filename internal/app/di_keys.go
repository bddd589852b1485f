package app

import (
	"fmt"
	"time"

	"github.com/allisson/cardvault/internal/config"
	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	keysRepository "github.com/allisson/cardvault/internal/keys/repository"
	keysUsecase "github.com/allisson/cardvault/internal/keys/usecase"
)

// KeyRepository returns the key lifecycle metadata repository.
func (c *Container) KeyRepository() (keysUsecase.KeyRepository, error) {
	err := c.initOnce("keyRepo", &c.keyRepoInit, func() (err error) {
		c.keyRepo, err = c.initKeyRepository()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.keyRepo, nil
}

// KeyLifecycleUseCase returns the key lifecycle manager.
func (c *Container) KeyLifecycleUseCase() (keysUsecase.KeyLifecycleUseCase, error) {
	err := c.initOnce("keyLifecycleUseCase", &c.keyLifecycleUseCaseInit, func() (err error) {
		c.keyLifecycleUseCase, err = c.initKeyLifecycleUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.keyLifecycleUseCase, nil
}

func (c *Container) initKeyRepository() (keysUsecase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	switch c.config.StoreDriver {
	case config.StoreDriverPostgres:
		return keysRepository.NewPostgreSQLKeyRepository(db), nil
	case config.StoreDriverMySQL:
		return keysRepository.NewMySQLKeyRepository(db), nil
	default:
		return keysRepository.NewMemoryKeyRepository(), nil
	}
}

// rotationPeriods converts KEY_ROTATION_<PURPOSE>_DAYS overrides into key purposes.
func (c *Container) rotationPeriods() map[keysDomain.Purpose]time.Duration {
	periods := make(map[keysDomain.Purpose]time.Duration, len(c.config.KeyRotationPeriods))
	for purpose, period := range c.config.KeyRotationPeriods {
		periods[keysDomain.Purpose(purpose)] = period
	}
	return periods
}

func (c *Container) initKeyLifecycleUseCase() (keysUsecase.KeyLifecycleUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key lifecycle use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key lifecycle use case: %w", err)
	}

	module, err := c.HSM()
	if err != nil {
		return nil, fmt.Errorf("failed to get hsm for key lifecycle use case: %w", err)
	}

	notifier, err := c.RotationNotifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation notifier for key lifecycle use case: %w", err)
	}

	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.HSMAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid hsm algorithm %q: %w", c.config.HSMAlgorithm, err)
	}

	baseUseCase := keysUsecase.NewKeyLifecycleUseCase(
		keysUsecase.Config{
			RotationPeriods: c.rotationPeriods(),
			Algorithm:       algorithm,
		},
		txManager,
		keyRepo,
		module,
		notifier,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for key lifecycle use case: %w", err)
		}
		return keysUsecase.NewKeyLifecycleUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
