package app

import (
	"fmt"

	"github.com/allisson/cardvault/internal/config"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
	vaultRepository "github.com/allisson/cardvault/internal/vault/repository"
	vaultUsecase "github.com/allisson/cardvault/internal/vault/usecase"
)

// RecordRepository returns the vault record store.
func (c *Container) RecordRepository() (vaultUsecase.RecordRepository, error) {
	err := c.initOnce("recordRepo", &c.recordRepoInit, func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for record repository: %w", err)
		}

		switch c.config.StoreDriver {
		case config.StoreDriverPostgres:
			c.recordRepo = vaultRepository.NewPostgreSQLRecordRepository(db)
		case config.StoreDriverMySQL:
			c.recordRepo = vaultRepository.NewMySQLRecordRepository(db)
		default:
			c.recordRepo = vaultRepository.NewMemoryRecordRepository()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.recordRepo, nil
}

// FingerprintRepository returns the fingerprint index store.
func (c *Container) FingerprintRepository() (vaultUsecase.FingerprintRepository, error) {
	err := c.initOnce("fingerprintRepo", &c.fingerprintRepoInit, func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for fingerprint repository: %w", err)
		}

		switch c.config.StoreDriver {
		case config.StoreDriverPostgres:
			c.fingerprintRepo = vaultRepository.NewPostgreSQLFingerprintRepository(db)
		case config.StoreDriverMySQL:
			c.fingerprintRepo = vaultRepository.NewMySQLFingerprintRepository(db)
		default:
			c.fingerprintRepo = vaultRepository.NewMemoryFingerprintRepository()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.fingerprintRepo, nil
}

// VaultUseCase returns the card tokenization vault.
func (c *Container) VaultUseCase() (vaultUsecase.VaultUseCase, error) {
	err := c.initOnce("vaultUseCase", &c.vaultUseCaseInit, func() (err error) {
		c.vaultUseCase, err = c.initVaultUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.vaultUseCase, nil
}

func (c *Container) initVaultUseCase() (vaultUsecase.VaultUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for vault use case: %w", err)
	}

	records, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for vault use case: %w", err)
	}

	fingerprints, err := c.FingerprintRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint repository for vault use case: %w", err)
	}

	keys, err := c.KeyLifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key lifecycle use case for vault use case: %w", err)
	}

	module, err := c.HSM()
	if err != nil {
		return nil, fmt.Errorf("failed to get hsm for vault use case: %w", err)
	}

	access, err := c.AccessUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get access use case for vault use case: %w", err)
	}

	baseUseCase, err := vaultUsecase.NewVaultUseCase(
		vaultUsecase.Config{
			TokenFormat:         vaultDomain.TokenFormat(c.config.TokenFormat),
			TokenLength:         c.config.TokenLength,
			TokenExpiryPeriod:   c.config.TokenExpiry,
			RotationConcurrency: c.config.RotationConcurrency,
			RotationRatePerSec:  c.config.RotationRatePerSec,
		},
		txManager,
		records,
		fingerprints,
		keys,
		module,
		access,
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault use case: %w", err)
	}

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for vault use case: %w", err)
		}
		return vaultUsecase.NewVaultUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
