package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  url: "sqlite://local.db"
wallet:
  chain_id: 137
  signature_type: 0
api:
  clob_base_url: "https://clob.polymarket.com"
  gamma_base_url: "https://gamma-api.polymarket.com"
  data_api_base_url: "https://data-api.polymarket.com"
detection:
  max_pair_cost: 0.96
  min_edge_after_fees: 0.02
collector:
  sources: ["orderbook", "polymarket"]
  symbol: "BTCUSDT"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(f.Name()) })
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestLoadAppliesDefaultsOnTopOfYAML(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite://local.db", cfg.Database.URL)
	assert.Equal(t, 0.96, cfg.Detection.MaxPairCost)
	assert.Equal(t, 1000, cfg.Collector.ChannelCapacity)
	assert.Equal(t, 100, cfg.Collector.SinkBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Collector.SinkFlushInterval)
	assert.Equal(t, 30*time.Second, cfg.Settlement.PollInterval)
	assert.Equal(t, []string{"orderbook", "polymarket"}, cfg.Collector.Sources)
}

func TestLoadEnvOverridesHardRequirements(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:///override.db")
	t.Setenv("POLYMARKET_PRIVATE_KEY", "0xabc123")
	t.Setenv("CRYPTOPANIC_API_KEY", "panic-key")

	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///override.db", cfg.Database.URL)
	assert.Equal(t, "0xabc123", cfg.Wallet.PrivateKey)
	assert.Equal(t, "panic-key", cfg.Collector.NewsAPIKey)
}

func TestLoadInvalidPathReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestValidateLiveModeRequiresWalletCredentials(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: "sqlite://x.db"},
		API:      APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
		Detection: DetectionConfig{MaxPairCost: 0.96, MinEdgeAfterFees: 0.02},
		Execution: ExecutionConfig{MaxOrderValue: 500, MaxDailyVolume: 5000, MaxOrderSize: 1000},
	}
	err := cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key")

	cfg.Wallet.PrivateKey = "0xdead"
	cfg.Wallet.ChainID = 137
	assert.NoError(t, cfg.Validate(true))
}

func TestValidatePaperModeDoesNotRequireWalletCredentials(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{URL: "sqlite://x.db"},
		API:       APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
		Detection: DetectionConfig{MaxPairCost: 0.96, MinEdgeAfterFees: 0.02},
		Execution: ExecutionConfig{MaxOrderValue: 500, MaxDailyVolume: 5000, MaxOrderSize: 1000},
	}
	assert.NoError(t, cfg.Validate(false))
}

func TestValidateRequiresExecutionLimits(t *testing.T) {
	base := &Config{
		Database:  DatabaseConfig{URL: "sqlite://x.db"},
		API:       APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
		Detection: DetectionConfig{MaxPairCost: 0.96, MinEdgeAfterFees: 0.02},
		Execution: ExecutionConfig{MaxOrderValue: 500, MaxDailyVolume: 5000, MaxOrderSize: 1000},
	}
	assert.NoError(t, base.Validate(false))

	missingVolume := *base
	missingVolume.Execution.MaxDailyVolume = 0
	err := missingVolume.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_daily_volume")

	missingSize := *base
	missingSize.Execution.MaxOrderSize = 0
	err = missingSize.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_order_size")

	negativeReserve := *base
	negativeReserve.Execution.MinBalanceReserve = -1
	err = negativeReserve.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_balance_reserve")
}

func TestValidateRejectsUnknownCollectorSource(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{URL: "sqlite://x.db"},
		API:       APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
		Detection: DetectionConfig{MaxPairCost: 0.96, MinEdgeAfterFees: 0.02},
		Execution: ExecutionConfig{MaxOrderValue: 500, MaxDailyVolume: 5000, MaxOrderSize: 1000},
		Collector: CollectorConfig{Sources: []string{"not-a-real-source"}},
	}
	err := cfg.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}
