package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/cardvault/internal/errors"
)

const testMasterKeys = "mk1:MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, HSMProviderSoftware, cfg.HSMProvider)
				assert.Equal(t, 5*time.Second, cfg.HSMTimeout)
				assert.Equal(t, "aes-gcm", cfg.HSMAlgorithm)
				assert.Equal(t, "uuid", cfg.TokenFormat)
				assert.Equal(t, 365*24*time.Hour, cfg.TokenExpiry)
				assert.Equal(t, 4, cfg.RotationConcurrency)
				assert.Equal(t, time.Hour, cfg.RotationCheckInterval)
				assert.Empty(t, cfg.KeyRotationPeriods)
				assert.True(t, cfg.AuditSigningEnabled)
				assert.Equal(t, "cardvault", cfg.MetricsNamespace)
			},
		},
		{
			name: "load custom store configuration",
			envVars: map[string]string{
				"STORE_DRIVER":            "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/cardvault?parseTime=true",
				"DB_MAX_OPEN_CONNECTIONS": "50",
				"DB_CONN_MAX_LIFETIME":    "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, StoreDriverMySQL, cfg.StoreDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/cardvault?parseTime=true", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
		{
			name: "load rotation overrides",
			envVars: map[string]string{
				"KEY_ROTATION_PAYMENT_DAYS":       "7",
				"KEY_ROTATION_PII_DAYS":           "30",
				"ROTATION_RATE_PER_SEC":           "250.5",
				"ROTATION_CHECK_INTERVAL_MINUTES": "15",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, map[string]time.Duration{
					"payment": 7 * 24 * time.Hour,
					"pii":     30 * 24 * time.Hour,
				}, cfg.KeyRotationPeriods)
				assert.Equal(t, 250.5, cfg.RotationRatePerSec)
				assert.Equal(t, 15*time.Minute, cfg.RotationCheckInterval)
			},
		},
		{
			name: "load custom token configuration",
			envVars: map[string]string{
				"TOKEN_FORMAT":      "luhn-preserving",
				"TOKEN_LENGTH":      "16",
				"TOKEN_EXPIRY_DAYS": "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "luhn-preserving", cfg.TokenFormat)
				assert.Equal(t, 16, cfg.TokenLength)
				assert.Equal(t, 30*24*time.Hour, cfg.TokenExpiry)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for key, value := range tt.envVars {
				require.NoError(t, os.Setenv(key, value))
			}

			tt.validate(t, Load())
		})
	}
}

func validConfig() *Config {
	os.Clearenv()
	cfg := Load()
	cfg.MasterKeys = testMasterKeys
	cfg.ActiveMasterKeyID = "mk1"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults with master keys", mutate: func(*Config) {}},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.StoreDriver = "sqlite" },
			wantErr: "StoreDriver",
		},
		{
			name: "sql store requires a connection string",
			mutate: func(c *Config) {
				c.StoreDriver = StoreDriverPostgres
				c.DBConnectionString = ""
			},
			wantErr: "DBConnectionString",
		},
		{
			name:    "software provider requires master keys",
			mutate:  func(c *Config) { c.MasterKeys = "" },
			wantErr: "MasterKeys",
		},
		{
			name:    "malformed master key entry",
			mutate:  func(c *Config) { c.MasterKeys = "mk1" },
			wantErr: "id:base64key",
		},
		{
			name:    "master key is not base64",
			mutate:  func(c *Config) { c.MasterKeys = "mk1:***" },
			wantErr: "base64",
		},
		{
			name:    "master key has the wrong size",
			mutate:  func(c *Config) { c.MasterKeys = "mk1:c2hvcnQ=" },
			wantErr: "key size",
		},
		{
			name: "kms provider requires a key uri",
			mutate: func(c *Config) {
				c.HSMProvider = HSMProviderKMS
				c.MasterKeys = ""
				c.ActiveMasterKeyID = ""
			},
			wantErr: "HSMKMSKeyURI",
		},
		{
			name: "kms provider with key uri",
			mutate: func(c *Config) {
				c.HSMProvider = HSMProviderKMS
				c.HSMKMSKeyURI = "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="
				c.MasterKeys = ""
				c.ActiveMasterKeyID = ""
			},
		},
		{
			name:    "unknown token format",
			mutate:  func(c *Config) { c.TokenFormat = "base64" },
			wantErr: "TokenFormat",
		},
		{
			name:    "token length too short",
			mutate:  func(c *Config) { c.TokenLength = 8 },
			wantErr: "TokenLength",
		},
		{
			name:    "rotation concurrency must be positive",
			mutate:  func(c *Config) { c.RotationConcurrency = 0 },
			wantErr: "RotationConcurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetGinMode(t *testing.T) {
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "warn"}).GetGinMode())
}
