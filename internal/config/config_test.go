package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("PAYMENT_MODE", "")
	t.Setenv("STOREFRONT_STORAGE", "")
	t.Setenv("STOREFRONT_JOURNAL_BROKERS", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, PaymentModeBypass, cfg.PaymentMode)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Empty(t, cfg.JournalBrokers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://sweets.example.com/")
	t.Setenv("PAYMENT_MODE", "intent")
	t.Setenv("STOREFRONT_JOURNAL_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "15s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "https://sweets.example.com", cfg.BackendURL)
	assert.Equal(t, PaymentModeIntent, cfg.PaymentMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.JournalBrokers)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("STOREFRONT_PROFILE", "")
	// godotenv does not override variables that are already set
	os.Unsetenv("STOREFRONT_PROFILE")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STOREFRONT_PROFILE=kiosk-7\n"), 0o600))

	cfg, err := Load(envFile)

	require.NoError(t, err)
	assert.Equal(t, "kiosk-7", cfg.StorageProfile)
	os.Unsetenv("STOREFRONT_PROFILE")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown payment mode", "PAYMENT_MODE", "cash"},
		{"breaker failures not a number", "STOREFRONT_BREAKER_MAX_FAILURES", "many"},
		{"breaker failures zero", "STOREFRONT_BREAKER_MAX_FAILURES", "0"},
		{"bad open timeout", "STOREFRONT_BREAKER_OPEN_TIMEOUT", "soon"},
		{"bad request timeout", "STOREFRONT_REQUEST_TIMEOUT", "later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
