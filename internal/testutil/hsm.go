package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
	hsmRepository "github.com/allisson/cardvault/internal/hsm/repository"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSoftwareHSM returns a connected software HSM backed by a fresh master key and an
// in-memory key store. It is closed when the test ends.
func NewSoftwareHSM(t *testing.T) hsmService.Module {
	t.Helper()

	_, entry, err := cryptoDomain.GenerateMasterKey("test-master")
	require.NoError(t, err)
	chain, err := cryptoDomain.LoadMasterKeyChain(entry, "test-master")
	require.NoError(t, err)

	aeadManager := cryptoService.NewAEADManager()
	module := hsmService.NewModule(
		hsmService.NewLocalWrapper(chain, aeadManager),
		hsmRepository.NewMemoryKeyStore(),
		aeadManager,
		cryptoDomain.AESGCM,
		5*time.Second,
		DiscardLogger(),
	)
	require.NoError(t, module.Connect(context.Background()))

	t.Cleanup(func() {
		_ = module.Close(context.Background())
		chain.Close()
	})
	return module
}
