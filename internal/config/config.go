// Package config defines all configuration for the crypto arbitrage and
// directional-trading engine. Config is loaded from a YAML file (default:
// configs/config.yaml) with the three hard-requirement fields overridable
// by name via environment variables, the same two-tier shape the teacher
// used for its wallet/API secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Detection DetectionConfig `mapstructure:"detection"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Collector CollectorConfig `mapstructure:"collector"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// DatabaseConfig points at the persistent repository backing every record
// type (§6.7): order-book snapshots, funding, liquidations, trade ticks,
// CVD, odds, news, and cross-market opportunities.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// WalletConfig holds the Ethereum wallet used for signing live orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys; it is only
// required when the phase1-arbitrage runner is started with --mode live.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds every external HTTP/WS endpoint this engine polls.
type APIConfig struct {
	CLOBBaseURL    string `mapstructure:"clob_base_url"`
	GammaBaseURL   string `mapstructure:"gamma_base_url"`
	DataAPIBaseURL string `mapstructure:"data_api_base_url"`
	WSMarketURL    string `mapstructure:"ws_market_url"`
	ApiKey         string `mapstructure:"api_key"`
	Secret         string `mapstructure:"secret"`
	Passphrase     string `mapstructure:"passphrase"`
}

// DetectionConfig tunes the arbitrage, gabagool, and cross-market
// directional detectors. The *-fee*/*-cost* defaults are the Phase-1
// hardcoded thresholds from §6.8: max_pair_cost=0.96,
// min_edge_after_fees=0.02, min_liquidity=$1000.
type DetectionConfig struct {
	MaxPairCost       float64 `mapstructure:"max_pair_cost"`
	MinEdgeAfterFees  float64 `mapstructure:"min_edge_after_fees"`
	MinLiquidity      float64 `mapstructure:"min_liquidity"`
	MinValidationTrades int   `mapstructure:"min_validation_trades"`
	FlowWindow        time.Duration `mapstructure:"flow_window"`
}

// ExecutionConfig sets the four hard limits the live executor checks
// before every submission (§4.10.2): order_value, daily_volume, the
// balance reserve floor, and order size. Any reject trips the circuit
// breaker as a one-way latch; there is no cooldown to configure.
type ExecutionConfig struct {
	MaxOrderValue     float64 `mapstructure:"max_order_value"`
	MaxDailyVolume    float64 `mapstructure:"max_daily_volume"`
	MinBalanceReserve float64 `mapstructure:"min_balance_reserve"`
	MaxOrderSize      float64 `mapstructure:"max_order_size"`
}

// CollectorConfig controls the collect-signals orchestrator: which
// producers run, how their sinks batch, and how often health is logged.
type CollectorConfig struct {
	Sources           []string      `mapstructure:"sources"`
	Symbol            string        `mapstructure:"symbol"`
	ChannelCapacity   int           `mapstructure:"channel_capacity"`
	SinkBatchSize     int           `mapstructure:"sink_batch_size"`
	SinkFlushInterval time.Duration `mapstructure:"sink_flush_interval"`
	HealthLogInterval time.Duration `mapstructure:"health_log_interval"`
	NewsAPIKey        string        `mapstructure:"news_api_key"`
}

// SettlementConfig tunes the §4.19 resolution sweep.
type SettlementConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SettlementDelay time.Duration `mapstructure:"settlement_delay"`
	MaxPendingAge   time.Duration `mapstructure:"max_pending_age"`
	FeeRate         float64       `mapstructure:"fee_rate"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the collector's health dashboard HTTP server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file, then overrides the three hard
// environment-variable requirements named in spec §6.9: DATABASE_URL,
// POLYMARKET_PRIVATE_KEY, CRYPTOPANIC_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if key := os.Getenv("POLYMARKET_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("CRYPTOPANIC_API_KEY"); key != "" {
		cfg.Collector.NewsAPIKey = key
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detection.max_pair_cost", 0.96)
	v.SetDefault("detection.min_edge_after_fees", 0.02)
	v.SetDefault("detection.min_liquidity", 1000.0)
	v.SetDefault("detection.min_validation_trades", 100)
	v.SetDefault("execution.max_order_value", 500.0)
	v.SetDefault("execution.max_daily_volume", 5000.0)
	v.SetDefault("execution.min_balance_reserve", 100.0)
	v.SetDefault("execution.max_order_size", 1000.0)
	v.SetDefault("collector.channel_capacity", 1000)
	v.SetDefault("collector.sink_batch_size", 100)
	v.SetDefault("collector.sink_flush_interval", 5*time.Second)
	v.SetDefault("collector.health_log_interval", 5*time.Minute)
	v.SetDefault("settlement.poll_interval", 30*time.Second)
	v.SetDefault("settlement.settlement_delay", 120*time.Second)
	v.SetDefault("settlement.max_pending_age", time.Hour)
	v.SetDefault("settlement.fee_rate", 0.0)
}

// Validate checks all required fields and value ranges. liveMode gates
// the wallet-credential requirement, since the collect-signals
// orchestrator never signs or submits orders.
func (c *Config) Validate(liveMode bool) error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set DATABASE_URL)")
	}
	if liveMode {
		if c.Wallet.PrivateKey == "" {
			return fmt.Errorf("wallet.private_key is required in live mode (set POLYMARKET_PRIVATE_KEY)")
		}
		if c.Wallet.ChainID == 0 {
			return fmt.Errorf("wallet.chain_id is required in live mode (137 for mainnet)")
		}
		switch c.Wallet.SignatureType {
		case 0, 1, 2:
		default:
			return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
		}
		if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
			return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
		}
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Detection.MaxPairCost <= 0 || c.Detection.MaxPairCost >= 1 {
		return fmt.Errorf("detection.max_pair_cost must be in (0, 1)")
	}
	if c.Detection.MinEdgeAfterFees <= 0 {
		return fmt.Errorf("detection.min_edge_after_fees must be > 0")
	}
	if c.Execution.MaxOrderValue <= 0 {
		return fmt.Errorf("execution.max_order_value must be > 0")
	}
	if c.Execution.MaxDailyVolume <= 0 {
		return fmt.Errorf("execution.max_daily_volume must be > 0")
	}
	if c.Execution.MinBalanceReserve < 0 {
		return fmt.Errorf("execution.min_balance_reserve must be >= 0")
	}
	if c.Execution.MaxOrderSize <= 0 {
		return fmt.Errorf("execution.max_order_size must be > 0")
	}
	for _, source := range c.Collector.Sources {
		if !validSource(source) {
			return fmt.Errorf("collector.sources: unknown source %q", source)
		}
	}
	return nil
}

func validSource(source string) bool {
	switch source {
	case "orderbook", "funding", "liquidations", "tradeticks", "polymarket", "news", "all":
		return true
	default:
		return false
	}
}
