package detect

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

var (
	DirectionalSignalsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_directional_signals_emitted_total",
		Help: "Total directional/latency signals emitted.",
	})
	DirectionalSignalStrength = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_directional_signal_strength",
		Help:    "Distribution of emitted directional signal strengths.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 20),
	})
)

func init() {
	prometheus.MustRegister(DirectionalSignalsEmittedTotal, DirectionalSignalStrength)
}

// DirectionalConfig holds the thresholds and cooldown the detector applies.
type DirectionalConfig struct {
	// MinWindowElapsedMs is how long a window must have been open before a
	// signal can fire (avoids acting on a fresh, noisy reference).
	MinWindowElapsedMs int64
	// MinTimeRemainingMs is the minimum time left in the window for a
	// signal to still be actionable.
	MinTimeRemainingMs int64
	// MinChangePct is the minimum absolute fractional move vs. the window
	// reference price required to emit a signal.
	MinChangePct float64
	// MaxEntryPrice caps the ask price a signal's side may be bought at.
	MaxEntryPrice decimal.Decimal
	// Cooldown is the minimum time between two emitted signals for the
	// same market, to avoid re-triggering on every tick of a sustained move.
	Cooldown time.Duration
}

// DirectionalSignal is one emitted latency/directional signal.
type DirectionalSignal struct {
	MarketID       string
	Coin           types.Coin
	Direction      types.Direction
	EntryPrice     money.Money
	ChangeAbs      float64
	ChangePct      float64
	ReferencePrice float64
	CurrentPrice   float64
	TimeRemainingS float64
	EstimatedEdge  float64
	Strength       float64
	WindowStartMs  int64
	EmittedAtMs    int64
}

// DirectionalDetector is a stateful, cooldown-gated signal emitter: it
// watches a coin's spot price against the 15-minute window's reference
// price and, once an up/down ask is cheap enough to still be worth buying,
// emits a directional signal the first time the move crosses MinChangePct,
// then stays silent for Cooldown even if the move persists. The cooldown
// state is reused from the flow-tracker rolling-window pattern,
// generalized from per-token inventory flow to per-market directional
// signal gating.
type DirectionalDetector struct {
	cfg    DirectionalConfig
	logger *slog.Logger

	mu          sync.Mutex
	hasEmitted  map[string]bool
	lastEmitted map[string]int64 // marketID -> nowMs of last emit
	lastWindow  map[string]int64
}

// NewDirectionalDetector builds a detector bound to cfg.
func NewDirectionalDetector(cfg DirectionalConfig, logger *slog.Logger) *DirectionalDetector {
	return &DirectionalDetector{
		cfg:         cfg,
		logger:      logger.With("component", "directional_detector"),
		hasEmitted:  make(map[string]bool),
		lastEmitted: make(map[string]int64),
		lastWindow:  make(map[string]int64),
	}
}

// Evaluate checks one market's coin tracker for a directional signal.
// upAsk/downAsk are the market's current best asks on each side; either may
// be the zero Money if that side's book isn't ready, in which case the
// corresponding direction simply can't fire. The cooldown resets
// automatically at each new 15-minute window boundary, so a market can
// always signal at least once per window regardless of when it last fired
// in a prior window.
func (d *DirectionalDetector) Evaluate(marketID string, coin types.Coin, tracker *market.SpotPriceTracker, upAsk, downAsk money.Money, nowMs int64) (*DirectionalSignal, bool) {
	current, ok := tracker.Current()
	if !ok {
		return nil, false
	}
	refPrice, windowStart, ok := tracker.Reference()
	if !ok {
		return nil, false
	}

	abs, pct, ok := tracker.ChangeVsReference()
	if !ok {
		return nil, false
	}

	elapsed := nowMs - windowStart
	if elapsed < d.cfg.MinWindowElapsedMs {
		return nil, false
	}
	remaining := window.TimeRemaining(nowMs)
	if remaining < d.cfg.MinTimeRemainingMs {
		return nil, false
	}
	if math.Abs(pct) < d.cfg.MinChangePct {
		return nil, false
	}

	var direction types.Direction
	var entryPrice money.Money
	switch {
	case pct > 0 && upAsk.GreaterThan(money.Zero) && upAsk.LessThanOrEqual(money.NewFromDecimal(d.cfg.MaxEntryPrice)):
		direction, entryPrice = types.DirectionYes, upAsk
	case pct < 0 && downAsk.GreaterThan(money.Zero) && downAsk.LessThanOrEqual(money.NewFromDecimal(d.cfg.MaxEntryPrice)):
		direction, entryPrice = types.DirectionNo, downAsk
	default:
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if lastWin, seen := d.lastWindow[marketID]; seen && lastWin != windowStart {
		d.hasEmitted[marketID] = false
	}
	d.lastWindow[marketID] = windowStart

	if d.hasEmitted[marketID] {
		sinceLast := time.Duration(nowMs-d.lastEmitted[marketID]) * time.Millisecond
		if sinceLast <= d.cfg.Cooldown {
			return nil, false
		}
	}

	d.hasEmitted[marketID] = true
	d.lastEmitted[marketID] = nowMs

	estimatedEdge := math.Abs(pct) - (1 - entryPrice.Float64())
	strength := 1.0
	if d.cfg.MinChangePct > 0 {
		strength = math.Abs(pct) / d.cfg.MinChangePct
		if strength > 1 {
			strength = 1
		}
	}

	DirectionalSignalsEmittedTotal.Inc()
	DirectionalSignalStrength.Observe(strength)

	d.logger.Debug("directional signal emitted",
		"market_id", marketID,
		"coin", string(coin),
		"change_pct", pct,
		"direction", string(direction),
	)

	return &DirectionalSignal{
		MarketID:       marketID,
		Coin:           coin,
		Direction:      direction,
		EntryPrice:     entryPrice,
		ChangeAbs:      abs,
		ChangePct:      pct,
		ReferencePrice: refPrice,
		CurrentPrice:   current.Price,
		TimeRemainingS: float64(remaining) / 1000,
		EstimatedEdge:  estimatedEdge,
		Strength:       strength,
		WindowStartMs:  windowStart,
		EmittedAtMs:    nowMs,
	}, true
}
