package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/config"
	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// memoryConfig returns a configuration that runs every component in process memory.
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()

	_, entry, err := cryptoDomain.GenerateMasterKey("test-master")
	require.NoError(t, err)

	return &config.Config{
		ServerHost:          "localhost",
		ServerPort:          0,
		StoreDriver:         config.StoreDriverMemory,
		LogLevel:            "error",
		HSMProvider:         config.HSMProviderSoftware,
		HSMTimeout:          5 * time.Second,
		HSMAlgorithm:        "aes-gcm",
		MasterKeys:          entry,
		ActiveMasterKeyID:   "test-master",
		AuditSigningEnabled: true,
		TokenFormat:         "uuid",
		TokenLength:         24,
		TokenExpiry:         24 * time.Hour,
		RotationConcurrency: 2,
		OutboxInterval:      time.Second,
		OutboxBatchSize:     10,
		OutboxMaxRetries:    3,
		OutboxRetryInterval: time.Second,
		MetricsNamespace:    "cardvault_test",
	}
}

func newMemoryContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	container := NewContainer(cfg)
	t.Cleanup(func() {
		_ = container.Shutdown(context.Background())
	})
	return container
}

func TestNewContainer(t *testing.T) {
	cfg := &config.Config{LogLevel: "info"}

	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainer_Logger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "invalid"} {
		t.Run(level, func(t *testing.T) {
			container := NewContainer(&config.Config{LogLevel: level})
			assert.Nil(t, container.logger)

			logger := container.Logger()
			require.NotNil(t, logger)
			assert.Same(t, logger, container.Logger())
		})
	}
}

func TestContainer_DB(t *testing.T) {
	t.Run("memory store has no database", func(t *testing.T) {
		container := NewContainer(&config.Config{StoreDriver: config.StoreDriverMemory})

		db, err := container.DB()
		require.NoError(t, err)
		assert.Nil(t, db)
		assert.True(t, container.IsMemoryStore())

		txManager, err := container.TxManager()
		require.NoError(t, err)
		assert.NotNil(t, txManager)
	})

	t.Run("unsupported driver error is remembered", func(t *testing.T) {
		container := NewContainer(&config.Config{StoreDriver: "sqlite"})

		_, err := container.DB()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported store driver")

		_, err2 := container.DB()
		assert.Equal(t, err, err2)

		_, err = container.TxManager()
		assert.Error(t, err)
	})
}

func TestContainer_HSM(t *testing.T) {
	t.Run("software provider connects", func(t *testing.T) {
		container := newMemoryContainer(t, memoryConfig(t))

		module, err := container.HSM()
		require.NoError(t, err)
		assert.Equal(t, hsmDomain.StateConnected, module.State())

		again, err := container.HSM()
		require.NoError(t, err)
		assert.Same(t, module, again)
	})

	t.Run("missing master keys", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.MasterKeys = ""
		container := newMemoryContainer(t, cfg)

		_, err := container.HSM()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "master key chain")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.HSMProvider = "pkcs11"
		container := newMemoryContainer(t, cfg)

		_, err := container.HSM()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported hsm provider")
	})

	t.Run("invalid algorithm", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.HSMAlgorithm = "des"
		container := newMemoryContainer(t, cfg)

		_, err := container.HSM()
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}

func TestContainer_VaultEndToEnd(t *testing.T) {
	ctx := context.Background()
	container := newMemoryContainer(t, memoryConfig(t))

	vault, err := container.VaultUseCase()
	require.NoError(t, err)

	writer := accessDomain.Context{SubjectID: "checkout", Level: accessDomain.LevelStandard}
	result, err := vault.StoreCard(ctx, vaultDomain.CardData{
		PAN:         "4111111111111111",
		CVV:         "123",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
	}, vaultDomain.StoreOptions{}, writer)
	require.NoError(t, err)
	assert.Equal(t, "1111", result.Last4)

	admin := accessDomain.Context{SubjectID: "ops", Level: accessDomain.LevelAdmin, Purpose: "audit"}
	stats, err := vault.GetVaultStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Active)

	access, err := container.AccessUseCase()
	require.NoError(t, err)

	report, err := access.Verify(ctx, accessDomain.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Zero(t, report.Invalid)
}

func TestContainer_RotationThroughOutbox(t *testing.T) {
	ctx := context.Background()
	container := newMemoryContainer(t, memoryConfig(t))

	vault, err := container.VaultUseCase()
	require.NoError(t, err)
	keys, err := container.KeyLifecycleUseCase()
	require.NoError(t, err)
	outbox, err := container.OutboxUseCase()
	require.NoError(t, err)
	repo, err := container.OutboxRepository()
	require.NoError(t, err)

	writer := accessDomain.Context{SubjectID: "checkout", Level: accessDomain.LevelStandard}
	_, err = vault.StoreCard(ctx, vaultDomain.CardData{
		PAN:         "5555555555554444",
		CVV:         "321",
		ExpiryMonth: 1,
		ExpiryYear:  2031,
	}, vaultDomain.StoreOptions{}, writer)
	require.NoError(t, err)

	oldKeyID, err := keys.GetActiveKey(ctx, keysDomain.PurposePayment)
	require.NoError(t, err)

	notifier, err := container.RotationNotifier()
	require.NoError(t, err)
	require.NoError(t, notifier.NotifyRotationDue(ctx, keysDomain.RotationNotice{
		KeyID:      oldKeyID,
		Purpose:    keysDomain.PurposePayment,
		DetectedAt: time.Now().UTC(),
	}))

	require.NoError(t, outbox.ProcessEvents(ctx))

	newKeyID, err := keys.GetActiveKey(ctx, keysDomain.PurposePayment)
	require.NoError(t, err)
	assert.NotEqual(t, oldKeyID, newKeyID)

	old, err := keys.Get(ctx, oldKeyID)
	require.NoError(t, err)
	assert.Equal(t, keysDomain.StatusDeactivated, old.Status)

	pending, err := repo.GetPendingEvents(ctx, 10, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestContainer_AuditSigningDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.AuditSigningEnabled = false
	container := newMemoryContainer(t, cfg)

	signer, err := container.AuditSigner()
	require.NoError(t, err)
	assert.Nil(t, signer)

	_, err = container.AccessUseCase()
	assert.NoError(t, err)
}

func TestContainer_Metrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		container := newMemoryContainer(t, memoryConfig(t))

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.Nil(t, provider)

		server, err := container.MetricsServer()
		require.NoError(t, err)
		assert.Nil(t, server)

		businessMetrics, err := container.BusinessMetrics()
		require.NoError(t, err)
		assert.NotNil(t, businessMetrics)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.MetricsEnabled = true
		container := newMemoryContainer(t, cfg)

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.NotNil(t, provider)

		server, err := container.MetricsServer()
		require.NoError(t, err)
		assert.NotNil(t, server)

		_, err = container.VaultUseCase()
		assert.NoError(t, err)
	})
}

func TestContainer_HTTPServer(t *testing.T) {
	container := newMemoryContainer(t, memoryConfig(t))

	server, err := container.HTTPServer()
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.NotNil(t, server.GetHandler())
}

func TestContainer_Shutdown(t *testing.T) {
	t.Run("nothing initialized", func(t *testing.T) {
		container := NewContainer(&config.Config{LogLevel: "info"})
		assert.NoError(t, container.Shutdown(context.Background()))
	})

	t.Run("closes the hsm", func(t *testing.T) {
		container := NewContainer(memoryConfig(t))

		module, err := container.HSM()
		require.NoError(t, err)

		require.NoError(t, container.Shutdown(context.Background()))
		assert.Equal(t, hsmDomain.StateDisconnected, module.State())
	})
}
