package app

import (
	"context"
	"fmt"

	"github.com/allisson/cardvault/internal/config"
	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
	hsmRepository "github.com/allisson/cardvault/internal/hsm/repository"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
)

// MasterKeyChain returns the master key chain loaded from MASTER_KEYS.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	err := c.initOnce("masterKeyChain", &c.masterKeyChainInit, func() (err error) {
		c.masterKeyChain, err = cryptoDomain.LoadMasterKeyChain(c.config.MasterKeys, c.config.ActiveMasterKeyID)
		if err != nil {
			return fmt.Errorf("failed to load master key chain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.masterKeyChain, nil
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KMSService returns the KMS service used by the kms provider.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KeyWrapper returns the backend that protects HSM key material at rest.
func (c *Container) KeyWrapper() (hsmService.KeyWrapper, error) {
	err := c.initOnce("keyWrapper", &c.keyWrapperInit, func() (err error) {
		c.keyWrapper, err = c.initKeyWrapper()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.keyWrapper, nil
}

// KeyStore returns the persistence for wrapped HSM keys.
func (c *Container) KeyStore() (hsmService.KeyStore, error) {
	err := c.initOnce("keyStore", &c.keyStoreInit, func() (err error) {
		c.keyStore, err = c.initKeyStore()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.keyStore, nil
}

// HSM returns the connected HSM module.
func (c *Container) HSM() (hsmService.Module, error) {
	err := c.initOnce("hsm", &c.hsmInit, func() (err error) {
		c.hsm, err = c.initHSM()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.hsm, nil
}

func (c *Container) initKeyWrapper() (hsmService.KeyWrapper, error) {
	switch c.config.HSMProvider {
	case "", config.HSMProviderSoftware:
		chain, err := c.MasterKeyChain()
		if err != nil {
			return nil, err
		}
		return hsmService.NewLocalWrapper(chain, c.AEADManager()), nil
	case config.HSMProviderKMS:
		return hsmService.NewKMSWrapper(
			c.KMSService(),
			c.config.HSMKMSKeyURI,
			c.config.HSMKMSConnectTimeout,
			c.Logger(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported hsm provider: %s", c.config.HSMProvider)
	}
}

func (c *Container) initKeyStore() (hsmService.KeyStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for hsm key store: %w", err)
	}

	switch c.config.StoreDriver {
	case config.StoreDriverPostgres:
		return hsmRepository.NewPostgreSQLKeyStore(db), nil
	case config.StoreDriverMySQL:
		return hsmRepository.NewMySQLKeyStore(db), nil
	default:
		return hsmRepository.NewMemoryKeyStore(), nil
	}
}

// initHSM builds the module and connects it. Connect is bounded by HSM_TIMEOUT_SECONDS.
func (c *Container) initHSM() (hsmService.Module, error) {
	wrapper, err := c.KeyWrapper()
	if err != nil {
		return nil, fmt.Errorf("failed to get key wrapper for hsm: %w", err)
	}

	store, err := c.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for hsm: %w", err)
	}

	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.HSMAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid hsm algorithm %q: %w", c.config.HSMAlgorithm, err)
	}

	var module hsmService.Module = hsmService.NewModule(
		wrapper,
		store,
		c.AEADManager(),
		algorithm,
		c.config.HSMTimeout,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for hsm: %w", err)
		}
		module = hsmService.NewModuleWithMetrics(module, businessMetrics)
	}

	if err := module.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect hsm: %w", err)
	}
	return module, nil
}
