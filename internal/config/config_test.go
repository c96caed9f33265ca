package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "TAX_RATE", "TX_MAX_ATTEMPTS", "CATALOG_CACHE_TTL_SECONDS", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.True(t, decimal.RequireFromString("0.15").Equal(cfg.TaxRate))
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 30, cfg.CatalogCacheTTLSeconds)
	assert.False(t, cfg.Development())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("TAX_RATE", "0.075")
	t.Setenv("TX_MAX_ATTEMPTS", "8")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.True(t, cfg.Development())
	assert.Equal(t, "0.075", cfg.TaxRate.String())
	assert.Equal(t, 8, cfg.TxMaxAttempts)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformedTaxRate(t *testing.T) {
	t.Setenv("TAX_RATE", "fifteen")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadTaxRateBounds(t *testing.T) {
	t.Setenv("TAX_RATE", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TaxRate.IsZero())

	for _, raw := range []string{"-0.01", "1", "1.5"} {
		t.Setenv("TAX_RATE", raw)
		_, err := Load()
		assert.Error(t, err, raw)
	}
}
