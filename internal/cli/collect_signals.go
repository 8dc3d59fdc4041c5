package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/collector"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/config"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/store"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// RunCollectSignals implements the collect-signals subcommand: it runs the
// collector orchestrator (internal/collector) against a fixed symbol and
// source set for a bounded duration, persisting every record to the store
// configured by cfgPath/DATABASE_URL.
func RunCollectSignals(args []string, cfgPath string, logger *slog.Logger) ExitCode {
	fs := pflag.NewFlagSet("collect-signals", pflag.ContinueOnError)
	duration := fs.String("duration", "", "how long to collect for, e.g. 30m")
	sources := fs.String("sources", "all", "CSV of sources to collect, or 'all'")
	symbol := fs.String("symbol", "BTCUSDT", "Binance futures symbol for the order-book/funding/liquidation/trade-tick sources")
	dbURL := fs.String("db-url", "", "overrides DATABASE_URL / config database.url")
	newsAPIKey := fs.String("news-api-key", "", "overrides CRYPTOPANIC_API_KEY / config collector.news_api_key")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	dur, err := ParseDuration(*duration)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	selected, err := ParseSources(*sources)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}
	if *newsAPIKey != "" {
		cfg.Collector.NewsAPIKey = *newsAPIKey
	}
	if err := cfg.Validate(false); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("collect-signals: open store: %w", err))
		return ExitRuntimeError
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	health := collector.NewHealthStats(reg)
	producers := buildProducers(selected, *symbol, cfg, logger)

	orchCfg := collector.Config{
		ChannelCapacity:   cfg.Collector.ChannelCapacity,
		SinkBatchSize:     cfg.Collector.SinkBatchSize,
		SinkFlushInterval: cfg.Collector.SinkFlushInterval,
		HealthLogInterval: cfg.Collector.HealthLogInterval,
	}
	orch := collector.NewOrchestrator(orchCfg, producers, &collector.StoreSink{Store: st}, health, logger)

	var dashboard *collector.DashboardServer
	if cfg.Dashboard.Enabled {
		dashboard = collector.NewDashboardServer(cfg.Dashboard.Port, reg, logger)
		go func() {
			if err := dashboard.Start(); err != nil {
				logger.Error("dashboard server stopped", "error", err)
			}
		}()
		defer dashboard.Stop()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, dur)
	defer cancel()

	runErr := orch.Run(ctx)
	switch {
	case sigCtx.Err() != nil:
		return ExitInterrupted
	case runErr != nil && runErr != context.DeadlineExceeded:
		fmt.Fprintln(os.Stderr, fmt.Errorf("collect-signals: %w", runErr))
		return ExitRuntimeError
	default:
		return ExitSuccess
	}
}

func buildProducers(selected []string, symbol string, cfg *config.Config, logger *slog.Logger) map[string]collector.Producer {
	producers := make(map[string]collector.Producer, len(selected))
	for _, source := range selected {
		switch source {
		case "orderbook":
			producers[source] = &collector.OrderBookSource{Symbols: []string{symbol}}
		case "funding":
			producers[source] = &collector.FundingSource{Symbols: []string{symbol}}
		case "liquidations":
			producers[source] = &collector.LiquidationSource{Symbols: []string{symbol}}
		case "tradeticks":
			producers[source] = &collector.TradeTickSource{Symbols: []string{symbol}}
		case "polymarket":
			producers[source] = &collector.PolymarketSource{
				Discovery:    discovery.NewGammaClient(cfg.API.GammaBaseURL, logger),
				Coins:        types.AllCoins,
				WSMarketURL:  cfg.API.WSMarketURL,
				PollInterval: collector.DefaultOddsPollInterval,
				Logger:       logger,
			}
		case "news":
			producers[source] = collector.NewNewsSource(cfg.Collector.NewsAPIKey, logger)
		}
	}
	return producers
}
