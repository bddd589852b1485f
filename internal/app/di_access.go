package app

import (
	"fmt"

	accessRepository "github.com/allisson/cardvault/internal/access/repository"
	accessService "github.com/allisson/cardvault/internal/access/service"
	accessUsecase "github.com/allisson/cardvault/internal/access/usecase"
	"github.com/allisson/cardvault/internal/config"
)

// AuditRepository returns the append-only audit sink.
func (c *Container) AuditRepository() (accessUsecase.AuditRepository, error) {
	err := c.initOnce("auditRepo", &c.auditRepoInit, func() (err error) {
		c.auditRepo, err = c.initAuditRepository()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.auditRepo, nil
}

// AuditSigner returns the audit entry signer, or nil when AUDIT_SIGNING_ENABLED is false.
func (c *Container) AuditSigner() (accessService.AuditSigner, error) {
	err := c.initOnce("auditSigner", &c.auditSignerInit, func() error {
		if !c.config.AuditSigningEnabled {
			return nil
		}

		keys, err := c.KeyLifecycleUseCase()
		if err != nil {
			return fmt.Errorf("failed to get key lifecycle use case for audit signer: %w", err)
		}

		module, err := c.HSM()
		if err != nil {
			return fmt.Errorf("failed to get hsm for audit signer: %w", err)
		}

		c.auditSigner = accessService.NewAuditSigner(keys, module)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.auditSigner, nil
}

// AccessUseCase returns the access control and audit use case.
func (c *Container) AccessUseCase() (accessUsecase.AccessUseCase, error) {
	err := c.initOnce("accessUseCase", &c.accessUseCaseInit, func() error {
		auditRepo, err := c.AuditRepository()
		if err != nil {
			return fmt.Errorf("failed to get audit repository for access use case: %w", err)
		}

		signer, err := c.AuditSigner()
		if err != nil {
			return fmt.Errorf("failed to get audit signer for access use case: %w", err)
		}

		c.accessUseCase = accessUsecase.NewAccessUseCase(auditRepo, signer, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.accessUseCase, nil
}

func (c *Container) initAuditRepository() (accessUsecase.AuditRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
	}

	switch c.config.StoreDriver {
	case config.StoreDriverPostgres:
		return accessRepository.NewPostgreSQLAuditRepository(db), nil
	case config.StoreDriverMySQL:
		return accessRepository.NewMySQLAuditRepository(db), nil
	default:
		return accessRepository.NewMemoryAuditRepository(), nil
	}
}
