package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// DirectionalRunnerConfig tunes a DirectionalRunner's market loop.
type DirectionalRunnerConfig struct {
	Coins             []types.Coin
	CheckInterval     time.Duration
	DiscoveryInterval time.Duration
	SignalBufferSize  int
	BookFeedURL       string
}

func (c *DirectionalRunnerConfig) setDefaults() {
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

// DirectionalRunner discovers markets, keeps per-market book feeds and
// per-coin spot trackers current, and every CheckInterval evaluates the
// directional detector against every active market, forwarding the single
// best signal this tick (ranked by EstimatedEdge) onto a bounded channel.
type DirectionalRunner struct {
	cfg       DirectionalRunnerConfig
	discovery discovery.Client
	detector  *detect.DirectionalDetector
	trackers  map[types.Coin]*market.SpotPriceTracker
	logger    *slog.Logger

	slots   *slotTable
	nowFn   func() int64
	signals chan detect.DirectionalSignal

	windowRollovers int
	lastWindowStart int64
}

// NewDirectionalRunner builds a runner. trackers must contain one
// *market.SpotPriceTracker per coin in cfg.Coins, fed independently by
// spotfeed sources; the runner only reads them.
func NewDirectionalRunner(cfg DirectionalRunnerConfig, disc discovery.Client, detector *detect.DirectionalDetector, trackers map[types.Coin]*market.SpotPriceTracker, nowFn func() int64, logger *slog.Logger) *DirectionalRunner {
	cfg.setDefaults()
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	return &DirectionalRunner{
		cfg:       cfg,
		discovery: disc,
		detector:  detector,
		trackers:  trackers,
		logger:    logger.With("component", "directional_runner"),
		slots:     newSlotTable(),
		nowFn:     nowFn,
		signals:   make(chan detect.DirectionalSignal, cfg.SignalBufferSize),
	}
}

// Signals returns the channel carrying the best signal of each tick.
func (r *DirectionalRunner) Signals() <-chan detect.DirectionalSignal {
	return r.signals
}

// Run blocks until ctx is cancelled, discovering markets and evaluating the
// detector on the configured interval.
func (r *DirectionalRunner) Run(ctx context.Context) error {
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

func (r *DirectionalRunner) pollDiscovery(ctx context.Context, wg *sync.WaitGroup) error {
	markets, err := r.discovery.CurrentWindowMarkets(ctx, r.cfg.Coins, r.nowFn())
	if err != nil {
		return err
	}
	r.slots.reconcile(ctx, wg, markets, r.cfg.BookFeedURL, r.logger)
	return nil
}

func (r *DirectionalRunner) tick() {
	now := r.nowFn()
	windowStart := window.Start(now)
	if r.lastWindowStart != 0 && windowStart != r.lastWindowStart {
		r.windowRollovers++
		r.lastWindowStart = windowStart
		return
	}
	r.lastWindowStart = windowStart

	var best *detect.DirectionalSignal
	for _, slot := range r.slots.snapshot() {
		tracker, ok := r.trackers[slot.info.Coin]
		if !ok {
			continue
		}
		upBook, downBook, ok := slot.feed.GetBooks(slot.info.UpTokenID, slot.info.DownTokenID)
		if !ok {
			continue
		}
		upAsk, _ := upBook.BestAskMoney()
		downAsk, _ := downBook.BestAskMoney()

		sig, found := r.detector.Evaluate(slot.info.ConditionID, slot.info.Coin, tracker, upAsk, downAsk, now)
		if !found {
			continue
		}
		if best == nil || sig.EstimatedEdge > best.EstimatedEdge {
			best = sig
		}
	}

	if best != nil {
		trySend(r.signals, *best, r.logger, "directional")
	}
}

// WindowRollovers returns how many window-transition ticks this runner has
// observed, for diagnostics.
func (r *DirectionalRunner) WindowRollovers() int {
	return r.windowRollovers
}
