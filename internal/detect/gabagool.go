package detect

import (
	"log/slog"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

var GabagoolSignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "polymarket_gabagool_signals_total",
	Help: "Total gabagool signals emitted, by kind.",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(GabagoolSignalsTotal)
}

// GabagoolConfig holds the entry/hedge/scratch thresholds the detector is
// pure over.
type GabagoolConfig struct {
	CheapThreshold     decimal.Decimal // e.g. 0.41
	PairCostThreshold  decimal.Decimal // e.g. 1.02
	EpsilonFee         decimal.Decimal // e.g. 0.01
	ScratchLossCap     decimal.Decimal // e.g. 0.05
	ScratchSigmaN      float64         // e.g. 2.0 standard deviations
	MinTimeRemainingMs int64
	MaxTimeRemainingMs int64
	ScratchMinTimeMs   int64
	// SpotDeltaPctThreshold is the fractional spot move vs. reference (e.g.
	// 0.003 for 0.3%) above which an entry's confidence score credits the
	// "size of spot delta vs. threshold" factor.
	SpotDeltaPctThreshold float64
}

// GabagoolKind distinguishes the three signal kinds the detector can emit.
type GabagoolKind string

const (
	GabagoolSignalEntry   GabagoolKind = "Entry"
	GabagoolSignalHedge   GabagoolKind = "Hedge"
	GabagoolSignalScratch GabagoolKind = "Scratch"
)

// GabagoolSignal is one emitted state-machine signal. The detector never
// auto-enters a position: the consumer is responsible for calling
// RecordEntry/RecordExit once it acts on the signal.
type GabagoolSignal struct {
	Kind          GabagoolKind
	MarketID      string
	Coin          types.Coin
	Direction     types.Direction
	Confidence    types.Confidence
	EntryPrice    money.Money
	HedgePrice    money.Money
	ExpectedPnL   money.Money
	WindowStartMs int64
	EmittedAtMs   int64
}

// GabagoolDetector implements the Entry/Hedge/Scratch hybrid state machine
// of §4.9: pure with respect to the market snapshot it is handed each
// evaluation, but stateful with respect to per-market-per-window cooldowns,
// which the consumer cannot observe directly and must drive via
// RecordEntry/RecordExit.
type GabagoolDetector struct {
	cfg    GabagoolConfig
	logger *slog.Logger

	mu              sync.Mutex
	enteredThisWin  map[string]int64 // marketID -> window_start_ms of last entry
}

// NewGabagoolDetector builds a detector bound to cfg.
func NewGabagoolDetector(cfg GabagoolConfig, logger *slog.Logger) *GabagoolDetector {
	return &GabagoolDetector{
		cfg:            cfg,
		logger:         logger.With("component", "gabagool_detector"),
		enteredThisWin: make(map[string]int64),
	}
}

// RecordEntry must be called by the consumer once it actually opens a
// position in response to an Entry signal, so that at-most-one-Entry-per-
// window-per-coin is enforced.
func (d *GabagoolDetector) RecordEntry(marketID string, windowStartMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enteredThisWin[marketID] = windowStartMs
}

// RecordExit must be called by the consumer once a position closes
// (hedged, scratched, or settled), clearing the per-window entry lock so a
// later window can enter again.
func (d *GabagoolDetector) RecordExit(marketID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.enteredThisWin, marketID)
}

func (d *GabagoolDetector) enteredInWindow(marketID string, windowStartMs int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	win, ok := d.enteredThisWin[marketID]
	if !ok {
		return false
	}
	if win != windowStartMs {
		delete(d.enteredThisWin, marketID)
		return false
	}
	return true
}

// Evaluate runs one pass of the state machine for a single market/coin.
// position is the consumer's current view of any open position for this
// market (nil if none). directionalAgreesWith reports whether the directional
// detector's current read of spot-vs-reference agrees with the cheap side
// (the "directional confirmation" leg of the entry gate).
func (d *GabagoolDetector) Evaluate(
	marketID string,
	coin types.Coin,
	yesBook, noBook *market.OrderBook,
	tracker *market.SpotPriceTracker,
	position *types.OpenPosition,
	directionalAgreesWith func(types.Direction) bool,
	nowMs int64,
) (*GabagoolSignal, bool) {
	windowStart := window.Start(nowMs)
	remaining := window.TimeRemaining(nowMs)

	if position != nil {
		return d.evaluateOpenPosition(marketID, coin, yesBook, noBook, tracker, *position, remaining, nowMs)
	}
	return d.evaluateEntry(marketID, coin, yesBook, noBook, tracker, directionalAgreesWith, windowStart, remaining, nowMs)
}

func (d *GabagoolDetector) evaluateEntry(
	marketID string,
	coin types.Coin,
	yesBook, noBook *market.OrderBook,
	tracker *market.SpotPriceTracker,
	directionalAgreesWith func(types.Direction) bool,
	windowStart, remainingMs, nowMs int64,
) (*GabagoolSignal, bool) {
	if d.enteredInWindow(marketID, windowStart) {
		return nil, false
	}
	if remainingMs < d.cfg.MinTimeRemainingMs || remainingMs > d.cfg.MaxTimeRemainingMs {
		return nil, false
	}

	yesAsk, okY := yesBook.BestAsk()
	noAsk, okN := noBook.BestAsk()
	if !okY || !okN {
		return nil, false
	}

	var cheapSide types.Direction
	var cheapPrice decimal.Decimal
	if yesAsk.LessThanOrEqual(noAsk) {
		cheapSide, cheapPrice = types.DirectionYes, yesAsk
	} else {
		cheapSide, cheapPrice = types.DirectionNo, noAsk
	}

	if cheapPrice.GreaterThan(d.cfg.CheapThreshold) {
		return nil, false
	}

	pairCost := yesAsk.Add(noAsk)
	if pairCost.GreaterThan(d.cfg.PairCostThreshold) {
		return nil, false
	}

	if directionalAgreesWith != nil && !directionalAgreesWith(cheapSide) {
		return nil, false
	}

	confidence := d.deriveConfidence(cheapSide, yesBook, noBook, tracker, remainingMs)

	GabagoolSignalsTotal.WithLabelValues(string(GabagoolSignalEntry)).Inc()
	d.logger.Debug("gabagool entry signal", "market_id", marketID, "side", string(cheapSide), "price", cheapPrice.String())

	return &GabagoolSignal{
		Kind:          GabagoolSignalEntry,
		MarketID:      marketID,
		Coin:          coin,
		Direction:     cheapSide,
		Confidence:    confidence,
		EntryPrice:    money.NewFromDecimal(cheapPrice),
		WindowStartMs: windowStart,
		EmittedAtMs:   nowMs,
	}, true
}

func (d *GabagoolDetector) evaluateOpenPosition(
	marketID string,
	coin types.Coin,
	yesBook, noBook *market.OrderBook,
	tracker *market.SpotPriceTracker,
	position types.OpenPosition,
	remainingMs, nowMs int64,
) (*GabagoolSignal, bool) {
	oppositeBook, sameBook := noBook, yesBook
	if position.Direction == types.DirectionNo {
		oppositeBook, sameBook = yesBook, noBook
	}

	one := decimal.NewFromInt(1)
	entryPrice := position.EntryPrice.Decimal()

	if oppAsk, ok := oppositeBook.BestAsk(); ok {
		hedgeCeiling := one.Sub(entryPrice).Sub(d.cfg.EpsilonFee)
		if oppAsk.LessThanOrEqual(hedgeCeiling) && remainingMs >= d.cfg.ScratchMinTimeMs {
			expectedPnL := one.Sub(entryPrice.Add(oppAsk))
			GabagoolSignalsTotal.WithLabelValues(string(GabagoolSignalHedge)).Inc()
			d.logger.Debug("gabagool hedge signal", "market_id", marketID, "hedge_price", oppAsk.String())
			return &GabagoolSignal{
				Kind:          GabagoolSignalHedge,
				MarketID:      marketID,
				Coin:          coin,
				Direction:     position.Direction,
				Confidence:    types.ConfidenceHigh,
				EntryPrice:    position.EntryPrice,
				HedgePrice:    money.NewFromDecimal(oppAsk),
				ExpectedPnL:   money.NewFromDecimal(expectedPnL),
				WindowStartMs: position.WindowStartMs,
				EmittedAtMs:   nowMs,
			}, true
		}
	}

	sameBid, hasSameBid := sameBook.BestBid()
	scratchCeiling := entryPrice.Sub(d.cfg.ScratchLossCap)
	priceBreach := hasSameBid && sameBid.LessThan(scratchCeiling)

	spotReversed := false
	if abs, _, ok := tracker.ChangeVsReference(); ok {
		_ = abs
		if _, sigma, sigOk := spotSigmaMove(tracker, position.Direction, d.cfg.ScratchSigmaN); sigOk {
			spotReversed = sigma && remainingMs < d.cfg.ScratchMinTimeMs
		}
	}

	if priceBreach || spotReversed {
		GabagoolSignalsTotal.WithLabelValues(string(GabagoolSignalScratch)).Inc()
		d.logger.Debug("gabagool scratch signal", "market_id", marketID, "price_breach", priceBreach, "spot_reversed", spotReversed)
		return &GabagoolSignal{
			Kind:          GabagoolSignalScratch,
			MarketID:      marketID,
			Coin:          coin,
			Direction:     position.Direction,
			Confidence:    types.ConfidenceLow,
			EntryPrice:    position.EntryPrice,
			WindowStartMs: position.WindowStartMs,
			EmittedAtMs:   nowMs,
		}, true
	}

	return nil, false
}

// spotSigmaMove reports whether the current spot price has moved at least
// nSigma standard deviations (estimated from the tracker's recent
// snapshot) against the given position direction.
func spotSigmaMove(tracker *market.SpotPriceTracker, dir types.Direction, nSigma float64) (float64, bool, bool) {
	snap := tracker.Snapshot()
	if len(snap) < 10 {
		return 0, false, false
	}
	var sum, sumSq float64
	for _, s := range snap {
		sum += s.Price
		sumSq += s.Price * s.Price
	}
	n := float64(len(snap))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return 0, false, true
	}
	stddev := math.Sqrt(variance)

	current := snap[0].Price
	delta := current - mean
	against := (dir == types.DirectionYes && delta < 0) || (dir == types.DirectionNo && delta > 0)
	moved := math.Abs(delta) >= nSigma*stddev && against
	return delta, moved, true
}

// deriveConfidence scores an entry signal on three factors (§4.9): the size
// of the spot delta vs. threshold, the depth available at the entry price,
// and the time remaining in the window.
func (d *GabagoolDetector) deriveConfidence(side types.Direction, yesBook, noBook *market.OrderBook, tracker *market.SpotPriceTracker, remainingMs int64) types.Confidence {
	book := yesBook
	if side == types.DirectionNo {
		book = noBook
	}
	if _, ok := book.BestAsk(); !ok {
		return types.ConfidenceLow
	}
	depth, _ := book.CostToFill(decimal.NewFromInt(1000))

	score := 0
	if _, pct, ok := tracker.ChangeVsReference(); ok && math.Abs(pct) >= d.cfg.SpotDeltaPctThreshold {
		score++
	}
	if depth.GreaterThan(decimal.NewFromInt(500)) {
		score++
	}
	if remainingMs > d.cfg.MinTimeRemainingMs*2 {
		score++
	}
	switch score {
	case 3:
		return types.ConfidenceHigh
	case 2:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
