package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	accessRepository "github.com/allisson/cardvault/internal/access/repository"
	accessUseCase "github.com/allisson/cardvault/internal/access/usecase"
	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	"github.com/allisson/cardvault/internal/database"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
	keysRepository "github.com/allisson/cardvault/internal/keys/repository"
	keysUseCase "github.com/allisson/cardvault/internal/keys/usecase"
	"github.com/allisson/cardvault/internal/testutil"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
	vaultRepository "github.com/allisson/cardvault/internal/vault/repository"
)

var (
	writer   = accessDomain.Context{SubjectID: "checkout", Level: accessDomain.LevelStandard}
	reader   = accessDomain.Context{SubjectID: "billing", Level: accessDomain.LevelElevated}
	revealer = accessDomain.Context{SubjectID: "settlement", Level: accessDomain.LevelElevated, Purpose: "chargeback"}
	admin    = accessDomain.Context{SubjectID: "ops", Level: accessDomain.LevelAdmin}
)

func visaCard() vaultDomain.CardData {
	return vaultDomain.CardData{PAN: "4111111111111111", CVV: "123", ExpiryMonth: 12, ExpiryYear: 2030}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	uc           VaultUseCase
	records      *vaultRepository.MemoryRecordRepository
	fingerprints *vaultRepository.MemoryFingerprintRepository
	audit        *accessRepository.MemoryAuditRepository
	keys         keysUseCase.KeyLifecycleUseCase
	hsm          hsmService.Module
	clock        *testClock
	config       Config
	access       AccessController
}

func newFixture(t *testing.T, mutate ...func(c *Config)) *fixture {
	t.Helper()

	hsm := testutil.NewSoftwareHSM(t)
	logger := testutil.DiscardLogger()
	keys := keysUseCase.NewKeyLifecycleUseCase(
		keysUseCase.Config{Algorithm: cryptoDomain.AESGCM},
		database.NewNoopTxManager(),
		keysRepository.NewMemoryKeyRepository(),
		hsm,
		nil,
		logger,
	)
	audit := accessRepository.NewMemoryAuditRepository()
	access := accessUseCase.NewAccessUseCase(audit, nil, logger)

	clock := &testClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	config := Config{
		TokenFormat:         vaultDomain.TokenFormatUUID,
		TokenExpiryPeriod:   30 * 24 * time.Hour,
		RotationConcurrency: 4,
		Now:                 clock.Now,
	}
	for _, m := range mutate {
		m(&config)
	}

	records := vaultRepository.NewMemoryRecordRepository()
	fingerprints := vaultRepository.NewMemoryFingerprintRepository()
	uc, err := NewVaultUseCase(
		config,
		database.NewNoopTxManager(),
		records,
		fingerprints,
		keys,
		hsm,
		access,
		logger,
	)
	require.NoError(t, err)

	return &fixture{
		uc:           uc,
		records:      records,
		fingerprints: fingerprints,
		audit:        audit,
		keys:         keys,
		hsm:          hsm,
		clock:        clock,
		config:       config,
		access:       access,
	}
}

// peer builds a second vault over the same stores and keys with its own lock
// tables, as another process would run it. fingerprints overrides the shared index
// when set.
func (f *fixture) peer(t *testing.T, fingerprints FingerprintRepository) VaultUseCase {
	t.Helper()
	if fingerprints == nil {
		fingerprints = f.fingerprints
	}
	uc, err := NewVaultUseCase(
		f.config,
		database.NewNoopTxManager(),
		f.records,
		fingerprints,
		f.keys,
		f.hsm,
		f.access,
		testutil.DiscardLogger(),
	)
	require.NoError(t, err)
	return uc
}

func (f *fixture) store(t *testing.T, card vaultDomain.CardData) *vaultDomain.StoreResult {
	t.Helper()
	result, err := f.uc.StoreCard(context.Background(), card, vaultDomain.StoreOptions{}, writer)
	require.NoError(t, err)
	return result
}

func (f *fixture) auditEntries(t *testing.T, op accessDomain.Operation) []*accessDomain.AuditEntry {
	t.Helper()
	entries, err := f.audit.List(context.Background(), accessDomain.AuditFilter{Operation: op})
	require.NoError(t, err)
	return entries
}

func (f *fixture) tamper(t *testing.T, token string, mutate func(r *vaultDomain.VaultRecord)) {
	t.Helper()
	ctx := context.Background()
	record, err := f.records.Get(ctx, token)
	require.NoError(t, err)
	mutate(record)
	require.NoError(t, f.records.Put(ctx, record))
}
