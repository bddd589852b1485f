package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockVault struct {
	mock.Mock
}

func (m *MockVault) RotateKeys(ctx context.Context, ac accessDomain.Context) (*vaultDomain.RotationResult, error) {
	args := m.Called(ctx, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.RotationResult), args.Error(1)
}

func (m *MockVault) GetVaultStats(ctx context.Context, ac accessDomain.Context) (*vaultDomain.VaultStats, error) {
	args := m.Called(ctx, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.VaultStats), args.Error(1)
}

func (m *MockVault) PurgeExpired(
	ctx context.Context,
	olderThan time.Duration,
	dryRun bool,
	ac accessDomain.Context,
) (int, error) {
	args := m.Called(ctx, olderThan, dryRun, ac)
	return args.Int(0), args.Error(1)
}

type MockKeyManager struct {
	mock.Mock
}

func (m *MockKeyManager) CheckRotationDue(ctx context.Context) ([]keysDomain.RotationNotice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]keysDomain.RotationNotice), args.Error(1)
}

func (m *MockKeyManager) List(ctx context.Context, filter keysDomain.KeyFilter) ([]*keysDomain.KeyRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.KeyRecord), args.Error(1)
}

type MockAuditVerifier struct {
	mock.Mock
}

func (m *MockAuditVerifier) Verify(
	ctx context.Context,
	filter accessDomain.AuditFilter,
) (*accessDomain.VerifyReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.VerifyReport), args.Error(1)
}

type MockKeyBackupper struct {
	mock.Mock
}

func (m *MockKeyBackupper) BackupKeys(ctx context.Context) (*hsmDomain.Backup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hsmDomain.Backup), args.Error(1)
}

func (m *MockKeyBackupper) RestoreKeys(ctx context.Context, backup *hsmDomain.Backup) (int, error) {
	args := m.Called(ctx, backup)
	return args.Int(0), args.Error(1)
}
