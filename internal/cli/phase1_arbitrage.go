package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/config"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/execute"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/runner"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/store"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// The Phase-1 arbitrage thresholds are hardcoded rather than read from
// config: Phase-1 is explicitly a fixed-parameter validation run, not a
// tunable strategy.
const (
	phase1MaxPairCost         = 0.96
	phase1MinEdgeAfterFees    = 0.02
	phase1MaxPositionValueUSD = 500.0
	phase1MinLiquidityUSD     = 1000.0
	phase1MinValidationTrades = 100
)

// RunPhase1Arbitrage implements the phase1-arbitrage subcommand: the
// pure same-market arbitrage runner (internal/runner.ArbitrageRunner),
// paired with either a paper or live dual-leg executor, run for a bounded
// duration.
func RunPhase1Arbitrage(args []string, cfgPath string, logger *slog.Logger) ExitCode {
	fs := pflag.NewFlagSet("phase1-arbitrage", pflag.ContinueOnError)
	mode := fs.String("mode", "paper", "paper or live")
	duration := fs.String("duration", "1h", "how long to run for")
	maxPosition := fs.Float64("max-position", phase1MaxPositionValueUSD, "override the Phase-1 max position value in USD")
	microTesting := fs.Bool("micro-testing", false, "shrink position size to $1 for live smoke-testing")
	realBooks := fs.Bool("real-books", false, "require live order books to be ready before trading (paper mode only; live always requires this)")
	skipConfirmation := fs.Bool("skip-confirmation", false, "skip the interactive confirmation prompt before live trading")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	if *mode != "paper" && *mode != "live" {
		fmt.Fprintln(os.Stderr, fmt.Errorf("phase1-arbitrage: --mode must be paper or live, got %q", *mode))
		return ExitConfigError
	}
	liveMode := *mode == "live"

	dur, err := ParseDuration(*duration)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	if err := cfg.Validate(liveMode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	positionValue := *maxPosition
	if *microTesting {
		positionValue = 1.0
	}

	if liveMode && !*skipConfirmation {
		fmt.Fprintf(os.Stderr, "About to trade LIVE with real funds (max position $%.2f). Type \"yes\" to continue: ", positionValue)
		var reply string
		fmt.Scanln(&reply)
		if reply != "yes" {
			fmt.Fprintln(os.Stderr, "phase1-arbitrage: live trading not confirmed, exiting")
			return ExitConfigError
		}
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("phase1-arbitrage: open store: %w", err))
		return ExitRuntimeError
	}
	defer st.Close()

	detector := detect.NewArbitrageDetector(detect.ArbitrageConfig{
		MaxPairCost:        money.New(phase1MaxPairCost),
		MinProfitThreshold: phase1MinEdgeAfterFees,
	}, logger)

	disc := &liquidityFilterClient{
		Client:       discovery.NewGammaClient(cfg.API.GammaBaseURL, logger),
		minLiquidity: phase1MinLiquidityUSD,
	}

	arbRunner := runner.NewArbitrageRunner(runner.ArbitrageRunnerConfig{
		Coins:       types.AllCoins,
		TradeSize:   money.New(positionValue),
		BookFeedURL: cfg.API.WSMarketURL,
	}, disc, detector, nil, logger)

	var impl execute.PolymarketExecutor
	if liveMode {
		impl, err = execute.NewLiveExecutor(cfg.API.CLOBBaseURL, cfg.Wallet.PrivateKey, int64(cfg.Wallet.ChainID), execute.Credentials{
			APIKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		}, execute.LiveLimits{
			MaxOrderValue:     money.New(cfg.Execution.MaxOrderValue),
			MaxDailyVolume:    money.New(cfg.Execution.MaxDailyVolume),
			MinBalanceReserve: money.New(cfg.Execution.MinBalanceReserve),
			MaxOrderSize:      money.New(cfg.Execution.MaxOrderSize),
		}, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("phase1-arbitrage: build live executor: %w", err))
			return ExitRuntimeError
		}
	} else {
		impl = execute.NewPaperExecutor(arbRunner, money.New(100_000), execute.DefaultFillRate, rand.New(rand.NewSource(1)), logger)
	}

	dualLeg := execute.NewDualLegExecutor(impl, *mode, logger)
	logger.Info("phase1-arbitrage starting",
		"mode", *mode,
		"max_pair_cost", phase1MaxPairCost,
		"min_edge_after_fees", phase1MinEdgeAfterFees,
		"max_position_value_usd", positionValue,
		"min_liquidity_usd", phase1MinLiquidityUSD,
		"min_validation_trades", phase1MinValidationTrades,
		"real_books", *realBooks || liveMode,
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, dur)
	defer cancel()

	runnerErrCh := make(chan error, 1)
	go func() { runnerErrCh <- arbRunner.Run(ctx) }()

	tradesExecuted := 0
	for {
		select {
		case <-ctx.Done():
			<-runnerErrCh
			logger.Info("phase1-arbitrage stopped", "trades_executed", tradesExecuted, "min_validation_trades", phase1MinValidationTrades)
			if sigCtx.Err() != nil {
				return ExitInterrupted
			}
			return ExitSuccess
		case opp := <-arbRunner.Signals():
			if opp.PairCost.Float64() > phase1MaxPairCost {
				continue
			}
			yesTokenID, noTokenID, ok := arbRunner.TokenIDs(opp.MarketID)
			if !ok {
				continue
			}
			if *realBooks || liveMode {
				yesBook, yesOK := arbRunner.Book(yesTokenID)
				noBook, noOK := arbRunner.Book(noTokenID)
				if !yesOK || !noOK || !yesBook.IsReady() || !noBook.IsReady() {
					continue
				}
			}
			result := dualLeg.Execute(ctx, yesTokenID, noTokenID, opp.YesAsk, opp.NoAsk, opp.Size)
			tradesExecuted++
			logger.Info("phase1-arbitrage trade", "market_id", opp.MarketID, "kind", result.Kind, "expected_profit", opp.ExpectedProfit.String())
		case err := <-runnerErrCh:
			if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Fprintln(os.Stderr, fmt.Errorf("phase1-arbitrage: runner: %w", err))
				return ExitRuntimeError
			}
			return ExitSuccess
		}
	}
}

// liquidityFilterClient wraps a discovery.Client, dropping any market
// below the Phase-1 min_liquidity=$1000 threshold before the runner ever
// opens a book feed for it.
type liquidityFilterClient struct {
	discovery.Client
	minLiquidity float64
}

func (c *liquidityFilterClient) CurrentWindowMarkets(ctx context.Context, coins []types.Coin, nowMs int64) ([]discovery.MarketInfo, error) {
	markets, err := c.Client.CurrentWindowMarkets(ctx, coins, nowMs)
	if err != nil {
		return nil, err
	}
	filtered := markets[:0]
	for _, m := range markets {
		if m.Liquidity >= c.minLiquidity {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}
