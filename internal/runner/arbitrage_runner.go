package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// ArbitrageRunnerConfig tunes an ArbitrageRunner's market loop.
type ArbitrageRunnerConfig struct {
	Coins             []types.Coin
	CheckInterval     time.Duration
	DiscoveryInterval time.Duration
	SignalBufferSize  int
	TradeSize         money.Money
	BookFeedURL       string
}

func (c *ArbitrageRunnerConfig) setDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if c.SignalBufferSize <= 0 {
		c.SignalBufferSize = DefaultSignalBufferSize
	}
}

// ArbitrageRunner discovers markets, keeps a book feed per market current,
// and every CheckInterval evaluates the pure-arbitrage detector against
// every active market, forwarding the single best opportunity this tick
// (ranked by ExpectedProfit) onto a bounded channel.
type ArbitrageRunner struct {
	cfg       ArbitrageRunnerConfig
	discovery discovery.Client
	detector  *detect.ArbitrageDetector
	logger    *slog.Logger

	slots   *slotTable
	nowFn   func() int64
	signals chan types.ArbitrageOpportunity

	windowRollovers int
	lastWindowStart int64
}

// NewArbitrageRunner builds a runner. nowFn defaults to wall-clock time if
// nil, overridable in tests/backtests for deterministic window rollover.
func NewArbitrageRunner(cfg ArbitrageRunnerConfig, disc discovery.Client, detector *detect.ArbitrageDetector, nowFn func() int64, logger *slog.Logger) *ArbitrageRunner {
	cfg.setDefaults()
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	return &ArbitrageRunner{
		cfg:       cfg,
		discovery: disc,
		detector:  detector,
		logger:    logger.With("component", "arbitrage_runner"),
		slots:     newSlotTable(),
		nowFn:     nowFn,
		signals:   make(chan types.ArbitrageOpportunity, cfg.SignalBufferSize),
	}
}

// Signals returns the channel carrying the best opportunity of each tick.
func (r *ArbitrageRunner) Signals() <-chan types.ArbitrageOpportunity {
	return r.signals
}

// Run blocks, discovering markets and evaluating the detector, until ctx
// is cancelled. On cancellation it stops every book feed and returns once
// all feed goroutines have exited.
func (r *ArbitrageRunner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		r.slots.stopAll()
		wg.Wait()
	}()

	if err := r.pollDiscovery(ctx, &wg); err != nil {
		r.logger.Error("initial discovery failed", "error", err)
	}

	discoveryTicker := time.NewTicker(r.cfg.DiscoveryInterval)
	defer discoveryTicker.Stop()
	checkTicker := time.NewTicker(r.cfg.CheckInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-discoveryTicker.C:
			if err := r.pollDiscovery(ctx, &wg); err != nil {
				r.logger.Error("discovery poll failed", "error", err)
			}
		case <-checkTicker.C:
			r.tick()
		}
	}
}

func (r *ArbitrageRunner) pollDiscovery(ctx context.Context, wg *sync.WaitGroup) error {
	markets, err := r.discovery.CurrentWindowMarkets(ctx, r.cfg.Coins, r.nowFn())
	if err != nil {
		return err
	}
	r.slots.reconcile(ctx, wg, markets, r.cfg.BookFeedURL, r.logger)
	return nil
}

// tick evaluates every active market once, emitting the single best
// opportunity by ExpectedProfit, and tracks window rollovers so callers can
// observe when a transition tick intentionally emits nothing.
func (r *ArbitrageRunner) tick() {
	now := r.nowFn()
	windowStart := window.Start(now)
	if r.lastWindowStart != 0 && windowStart != r.lastWindowStart {
		r.windowRollovers++
		r.lastWindowStart = windowStart
		return
	}
	r.lastWindowStart = windowStart

	var best *types.ArbitrageOpportunity
	for _, slot := range r.slots.snapshot() {
		yesBook, noBook, ok := slot.feed.GetBooks(slot.info.UpTokenID, slot.info.DownTokenID)
		if !ok {
			continue
		}
		opp, found := r.detector.Detect(slot.info.ConditionID, yesBook, noBook, r.cfg.TradeSize, now)
		if !found {
			continue
		}
		if best == nil || opp.ExpectedProfit.GreaterThan(best.ExpectedProfit) {
			best = opp
		}
	}

	if best != nil {
		trySend(r.signals, *best, r.logger, "arbitrage")
	}
}

// WindowRollovers returns how many window-transition ticks this runner has
// observed, for diagnostics.
func (r *ArbitrageRunner) WindowRollovers() int {
	return r.windowRollovers
}

// Book looks up the order book for tokenID across every currently active
// market slot, satisfying execute.BookSource so a DualLegExecutor can read
// the same live books this runner's detector evaluates each tick.
func (r *ArbitrageRunner) Book(tokenID string) (*market.OrderBook, bool) {
	for _, slot := range r.slots.snapshot() {
		if b, ok := slot.feed.Book(tokenID); ok {
			return b, true
		}
	}
	return nil, false
}

// TokenIDs resolves the up/down token IDs for the market identified by
// conditionID (an ArbitrageOpportunity's MarketID), so a caller can hand
// them to a DualLegExecutor.
func (r *ArbitrageRunner) TokenIDs(conditionID string) (yesTokenID, noTokenID string, ok bool) {
	for _, slot := range r.slots.snapshot() {
		if slot.info.ConditionID == conditionID {
			return slot.info.UpTokenID, slot.info.DownTokenID, true
		}
	}
	return "", "", false
}
