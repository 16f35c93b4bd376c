package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, Default().DBHost, cfg.DBHost)
	assert.Equal(t, "XOF", cfg.DefaultCurrency)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.True(t, decimal.RequireFromString("0.008").Equal(cfg.FeeRate))
	assert.Equal(t, int64(100), cfg.FeePolicy().Min)
	assert.Equal(t, 10, cfg.Paginator().DefaultLimit)
}

func TestLoadEnvironmentAndFlags(t *testing.T) {
	t.Setenv("HUB_DB_HOST", "db.internal")
	t.Setenv("HUB_DB_PORT", "6543")
	t.Setenv("HUB_API_KEY", "from-env")
	t.Setenv("HUB_PROVIDER_TIMEOUT", "5s")

	cfg, err := Load([]string{"-api_key", "from-flag", "-store_driver", "memory", "-fee_rate", "0.01"})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "6543", cfg.DBPort)
	assert.Equal(t, "from-flag", cfg.APIKey)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "0.01", cfg.FeeRate.String())
	assert.Equal(t,
		"host=db.internal port=6543 user=postgres password=postgres dbname=transfer_hub sslmode=disable",
		cfg.GetDBConnectionString())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, args := range map[string][]string{
		"driver":            {"-store_driver", "sqlite"},
		"fee rate":          {"-fee_rate", "a lot"},
		"fee bounds":        {"-fee_min", "2000", "-fee_max", "1000"},
		"success rate":      {"-provider_success_rate", "1.5"},
		"zero success rate": {"-provider_success_rate", "0"},
		"duration":          {"-provider_timeout", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(args)
			assert.Error(t, err)
		})
	}
}
