package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTestDSN(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("TEST_POSTGRES_DSN", "")
		t.Setenv("TEST_MYSQL_DSN", "")
		assert.Equal(t, defaultPostgresTestDSN, GetPostgresTestDSN())
		assert.Equal(t, defaultMySQLTestDSN, GetMySQLTestDSN())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TEST_POSTGRES_DSN", "postgres://custom@localhost/db")
		t.Setenv("TEST_MYSQL_DSN", "custom@tcp(localhost)/db")
		assert.Equal(t, "postgres://custom@localhost/db", GetPostgresTestDSN())
		assert.Equal(t, "custom@tcp(localhost)/db", GetMySQLTestDSN())
	})
}

func TestFindMigrations(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "migrations", "postgresql"), 0o755))
	nested := filepath.Join(root, "internal", "vault")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	path, err := findMigrations("postgresql")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "migrations", "postgresql"), path)

	_, err = findMigrations("oracle")
	assert.Error(t, err)
}

func TestNewSoftwareHSM(t *testing.T) {
	module := NewSoftwareHSM(t)
	assert.Equal(t, "connected", module.State().String())
}
