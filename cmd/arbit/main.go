// arbit is this repo's entry point: it loads configuration, builds a
// logger the same way the teacher's bot did, and dispatches to one of two
// subcommands.
//
//	collect-signals    — runs the collector orchestrator (internal/collector)
//	                      against a fixed symbol/source set, persisting
//	                      every record to the store.
//	phase1-arbitrage   — runs the pure same-market arbitrage strategy
//	                      (internal/runner.ArbitrageRunner +
//	                      internal/detect.ArbitrageDetector +
//	                      internal/execute.DualLegExecutor) in paper or
//	                      live mode, with the Phase-1 hardcoded thresholds.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/cli"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/config"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARBIT_CONFIG"); p != "" {
		cfgPath = p
	}

	// A bare logger built off defaults, used only to report a config-load
	// failure before the real level/format from the config file is known.
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: arbit <collect-signals|phase1-arbitrage> [flags]")
		os.Exit(int(cli.ExitConfigError))
	}

	probeCfg, err := config.Load(cfgPath)
	logger := bootstrapLogger
	if err == nil {
		logger = buildLogger(probeCfg.Logging)
	}

	subcommand := os.Args[1]
	rest := os.Args[2:]

	var code cli.ExitCode
	switch subcommand {
	case "collect-signals":
		code = cli.RunCollectSignals(rest, cfgPath, logger)
	case "phase1-arbitrage":
		code = cli.RunPhase1Arbitrage(rest, cfgPath, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q; expected collect-signals or phase1-arbitrage\n", subcommand)
		code = cli.ExitConfigError
	}

	os.Exit(int(code))
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
