package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// GabagoolRunnerConfig tunes a GabagoolRunner's market loop.
type GabagoolRunnerConfig struct {
	Coins             []types.Coin
	CheckInterval     time.Duration
	DiscoveryInterval time.Duration
	SignalBufferSize  int
	BookFeedURL       string
}

func (c *GabagoolRunnerConfig) setDefaults() {
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

// GabagoolRunner discovers markets, keeps per-market book feeds and
// per-coin spot trackers current, and every CheckInterval evaluates the
// gabagool hybrid state machine for every active market. It owns the
// per-market open-position view the detector is pure over, and a small
// directional side-channel used only as the entry gate's confirmation
// signal (never itself a tradeable output of this runner).
type GabagoolRunner struct {
	cfg              GabagoolRunnerConfig
	discovery        discovery.Client
	detector         *detect.GabagoolDetector
	directionalSide  *detect.DirectionalDetector
	trackers         map[types.Coin]*market.SpotPriceTracker
	logger           *slog.Logger

	slots    *slotTable
	nowFn    func() int64
	signals  chan detect.GabagoolSignal

	posMu     sync.Mutex
	positions map[string]*types.OpenPosition // conditionID -> open position, nil entries never stored
}

// NewGabagoolRunner builds a runner. directionalSide may be nil, in which
// case the entry gate's directional-confirmation leg always passes;
// otherwise it supplies the cheap-side agreement check from the same spot
// trackers the directional strategy watches.
func NewGabagoolRunner(cfg GabagoolRunnerConfig, disc discovery.Client, detector *detect.GabagoolDetector, directionalSide *detect.DirectionalDetector, trackers map[types.Coin]*market.SpotPriceTracker, nowFn func() int64, logger *slog.Logger) *GabagoolRunner {
	cfg.setDefaults()
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	return &GabagoolRunner{
		cfg:             cfg,
		discovery:       disc,
		detector:        detector,
		directionalSide: directionalSide,
		trackers:        trackers,
		logger:          logger.With("component", "gabagool_runner"),
		slots:           newSlotTable(),
		nowFn:           nowFn,
		signals:         make(chan detect.GabagoolSignal, cfg.SignalBufferSize),
		positions:       make(map[string]*types.OpenPosition),
	}
}

// Signals returns the channel carrying every signal the detector emits on
// each tick (one per market at most).
func (r *GabagoolRunner) Signals() <-chan detect.GabagoolSignal {
	return r.signals
}

// OnEntered must be called by the consumer once it acts on an Entry signal,
// recording the open position both in the detector's per-window lock and
// this runner's own position view the detector is evaluated against.
func (r *GabagoolRunner) OnEntered(conditionID string, pos types.OpenPosition) {
	r.posMu.Lock()
	r.positions[conditionID] = &pos
	r.posMu.Unlock()
	r.detector.RecordEntry(conditionID, pos.WindowStartMs)
}

// OnExited must be called once a position closes (hedged, scratched, or
// settled).
func (r *GabagoolRunner) OnExited(conditionID string) {
	r.posMu.Lock()
	delete(r.positions, conditionID)
	r.posMu.Unlock()
	r.detector.RecordExit(conditionID)
}

func (r *GabagoolRunner) positionFor(conditionID string) *types.OpenPosition {
	r.posMu.Lock()
	defer r.posMu.Unlock()
	return r.positions[conditionID]
}

// Run blocks until ctx is cancelled, discovering markets and evaluating the
// detector on the configured interval.
func (r *GabagoolRunner) Run(ctx context.Context) error {
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

func (r *GabagoolRunner) pollDiscovery(ctx context.Context, wg *sync.WaitGroup) error {
	markets, err := r.discovery.CurrentWindowMarkets(ctx, r.cfg.Coins, r.nowFn())
	if err != nil {
		return err
	}
	r.slots.reconcile(ctx, wg, markets, r.cfg.BookFeedURL, r.logger)
	return nil
}

// directionalAgreement builds the per-market confirmation closure the
// entry gate consults: the side agrees when it matches the sign of the
// coin's current spot change vs its window reference (Yes for a rise, No
// for a fall, neither when flat). The directional detector itself is not
// evaluated; a nil directionalSide or tracker, or no reference yet, yields
// a nil closure.
func (r *GabagoolRunner) directionalAgreement(coin types.Coin, tracker *market.SpotPriceTracker) func(types.Direction) bool {
	if r.directionalSide == nil || tracker == nil {
		return nil
	}
	_, pct, ok := tracker.ChangeVsReference()
	if !ok {
		return nil
	}
	return func(side types.Direction) bool {
		if pct > 0 {
			return side == types.DirectionYes
		}
		if pct < 0 {
			return side == types.DirectionNo
		}
		return false
	}
}

func (r *GabagoolRunner) tick() {
	now := r.nowFn()
	for _, slot := range r.slots.snapshot() {
		tracker, ok := r.trackers[slot.info.Coin]
		if !ok {
			continue
		}
		yesBook, noBook, ok := slot.feed.GetBooks(slot.info.UpTokenID, slot.info.DownTokenID)
		if !ok {
			continue
		}

		position := r.positionFor(slot.info.ConditionID)
		agreement := r.directionalAgreement(slot.info.Coin, tracker)

		sig, found := r.detector.Evaluate(slot.info.ConditionID, slot.info.Coin, yesBook, noBook, tracker, position, agreement, now)
		if !found {
			continue
		}
		trySend(r.signals, *sig, r.logger, "gabagool")
	}
}
