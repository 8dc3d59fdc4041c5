// Package backtest implements the deterministic binary-market replay
// engine and its metrics aggregator. The engine is grounded on
// chidi150c-coinbase's backtest.go replay-loop shape (chronological
// replay, skip-on-missing-data, running accumulation), adapted from that
// repo's multi-bar equity simulation to this engine's fixed-payout binary
// settlement over precomputed signals.
package backtest

import (
	"sort"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// DirectionNeutral marks a signal that carries no trade opinion; the
// engine always rejects it without consuming a price lookup.
const DirectionNeutral types.Direction = "Neutral"

// DefaultWindowDurationMs is the binary market's settlement horizon: 15
// minutes, same as the window size the rest of the engine trades on.
const DefaultWindowDurationMs int64 = 900_000

// DefaultFairPrice is the price a bet is recorded at when the engine has
// no live order book to quote against.
var DefaultFairPrice = money.New(0.50)

var (
	SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_binary_settlements_total",
		Help: "Total binary bet settlements, by outcome.",
	}, []string{"outcome"})
	WinRateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_binary_win_rate",
		Help: "Win rate (wins / (wins+losses)) of the most recently computed backtest run.",
	})
	NetPnLGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_binary_net_pnl_usd",
		Help: "Net P&L in USD of the most recently computed backtest run.",
	})
)

func init() {
	prometheus.MustRegister(SettlementsTotal, WinRateGauge, NetPnLGauge)
}

// PriceProvider resolves a point-in-time price for a coin without
// look-ahead: PriceAt must never return a price observed after atMs.
type PriceProvider interface {
	PriceAt(coin types.Coin, atMs int64) (price float64, ok bool)
}

// Signal is one precomputed directional trading decision to replay. A
// Direction of DirectionNeutral is always rejected.
type Signal struct {
	TimestampMs int64
	MarketID    string
	Coin        types.Coin
	Direction   types.Direction
	Strength    float64
	EV          float64
	Price       money.Money // zero value means "use Config.FairPrice"
	Stake       money.Money
}

// Config holds the engine's filters and fee model.
type Config struct {
	MinStrength       float64
	MinEV             float64
	WindowDurationMs  int64
	FairPrice         money.Money
	FeeRate           float64 // fraction of stake, charged on Win and Loss, never Push
}

func (c *Config) setDefaults() {
	if c.WindowDurationMs <= 0 {
		c.WindowDurationMs = DefaultWindowDurationMs
	}
	if c.FairPrice.IsZero() {
		c.FairPrice = DefaultFairPrice
	}
}

// Result is one backtest run's full output.
type Result struct {
	Settlements     []types.SettlementResult
	Metrics         BinaryMetrics
	SignalsProcessed int
	SignalsSkipped   int
	FillRate         float64
}

// Engine replays a sorted set of signals against a point-in-time price
// provider and settles each one, deterministically and without
// look-ahead: every price query is for a timestamp named by the signal
// itself (its own time, or its time plus the fixed window duration),
// never a time chosen after seeing later data.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine bound to cfg, applying defaults for any
// zero-valued field.
func NewEngine(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Run replays signals in ascending timestamp order (a defensive sort of a
// copy; the caller's slice is left untouched) and returns the settlements,
// their aggregated BinaryMetrics, and processing counts.
func (e *Engine) Run(signals []Signal, provider PriceProvider) Result {
	sorted := make([]Signal, len(signals))
	copy(sorted, signals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })

	var settlements []types.SettlementResult
	processed, skipped := 0, 0

	for _, sig := range sorted {
		settlement, ok := e.settleOne(sig, provider)
		if !ok {
			skipped++
			continue
		}
		processed++
		settlements = append(settlements, settlement)
		SettlementsTotal.WithLabelValues(string(settlement.Outcome)).Inc()
	}

	metrics := Compute(settlements)
	WinRateGauge.Set(metrics.WinRate)
	NetPnLGauge.Set(metrics.NetPnL.Float64())

	fillRate := 0.0
	if total := processed + skipped; total > 0 {
		fillRate = float64(processed) / float64(total)
	}

	return Result{
		Settlements:      settlements,
		Metrics:          metrics,
		SignalsProcessed: processed,
		SignalsSkipped:   skipped,
		FillRate:         fillRate,
	}
}

func (e *Engine) settleOne(sig Signal, provider PriceProvider) (types.SettlementResult, bool) {
	if sig.Direction == DirectionNeutral {
		return types.SettlementResult{}, false
	}
	if sig.Strength < e.cfg.MinStrength || sig.EV < e.cfg.MinEV {
		return types.SettlementResult{}, false
	}

	startPrice, ok := provider.PriceAt(sig.Coin, sig.TimestampMs)
	if !ok {
		return types.SettlementResult{}, false
	}
	endMs := sig.TimestampMs + e.cfg.WindowDurationMs
	endPrice, ok := provider.PriceAt(sig.Coin, endMs)
	if !ok {
		return types.SettlementResult{}, false
	}

	price := sig.Price
	if price.IsZero() {
		price = e.cfg.FairPrice
	}
	stake := sig.Stake
	bet := types.BinaryBet{
		ID:             uuid.New(),
		Timestamp:      sig.TimestampMs,
		MarketID:       sig.MarketID,
		Direction:      sig.Direction,
		Stake:          stake,
		Price:          price,
		SignalStrength: sig.Strength,
	}

	outcome := resolveOutcome(sig.Direction, startPrice, endPrice)
	fees := money.Zero
	if outcome != types.OutcomePush {
		fees = stake.MulFloat(e.cfg.FeeRate)
	}

	return types.SettlementResult{
		Bet:            bet,
		SettlementTime: endMs,
		StartPrice:     startPrice,
		EndPrice:       endPrice,
		Outcome:        outcome,
		Fees:           fees,
	}, true
}

// resolveOutcome maps the bet's chosen side against the sign of the
// realized price move: Yes wins on an up move, No wins on a down move, and
// an exactly flat move is always a Push regardless of side.
func resolveOutcome(direction types.Direction, startPrice, endPrice float64) types.Outcome {
	switch {
	case endPrice == startPrice:
		return types.OutcomePush
	case endPrice > startPrice:
		if direction == types.DirectionYes {
			return types.OutcomeWin
		}
		return types.OutcomeLoss
	default:
		if direction == types.DirectionNo {
			return types.OutcomeWin
		}
		return types.OutcomeLoss
	}
}
