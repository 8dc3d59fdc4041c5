// Package detect implements the three pure/stateful detectors that turn
// market-data fabric state into trading signals: pure arbitrage,
// directional/latency, and the gabagool hybrid state machine.
package detect

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// arbitrage Prometheus vectors, grounded on the corpus's
// OpportunitiesDetectedTotal / OpportunityProfitBPS pattern.
var (
	OpportunitiesDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_arbitrage_opportunities_detected_total",
		Help: "Total pure-arbitrage opportunities detected.",
	})
	OpportunityProfitBPS = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_arbitrage_opportunity_profit_bps",
		Help:    "Expected profit in basis points for detected arbitrage opportunities.",
		Buckets: prometheus.LinearBuckets(0, 50, 20),
	})
)

func init() {
	prometheus.MustRegister(OpportunitiesDetectedTotal, OpportunityProfitBPS)
}

// ArbitrageConfig holds the thresholds the detector is pure over.
type ArbitrageConfig struct {
	MaxPairCost         money.Money
	MinProfitThreshold  float64 // fraction of size, e.g. 0.02 = 2%
}

// ArbitrageDetector is a pure, stateless function object: given a market's
// YES and NO order books and a target size, it decides whether buying size
// shares of each locks a sufficient guaranteed profit.
type ArbitrageDetector struct {
	cfg    ArbitrageConfig
	logger *slog.Logger
}

// NewArbitrageDetector builds a detector bound to the given config.
func NewArbitrageDetector(cfg ArbitrageConfig, logger *slog.Logger) *ArbitrageDetector {
	return &ArbitrageDetector{cfg: cfg, logger: logger.With("component", "arbitrage_detector")}
}

// Detect evaluates one market at one instant. Returns (nil, false) when no
// opportunity exists; pure and idempotent over its inputs, with no
// internal state.
func (d *ArbitrageDetector) Detect(marketID string, yesBook, noBook *market.OrderBook, size money.Money, detectedAtMs int64) (*types.ArbitrageOpportunity, bool) {
	yesAsk, ok := yesBook.BestAskMoney()
	if !ok {
		return nil, false
	}
	noAsk, ok := noBook.BestAskMoney()
	if !ok {
		return nil, false
	}

	pairCost := yesAsk.Add(noAsk)
	if pairCost.GreaterThanOrEqual(d.cfg.MaxPairCost) {
		return nil, false
	}

	yesFillable, _ := yesBook.CostToFill(size.Decimal())
	if yesFillable.LessThan(size.Decimal()) {
		return nil, false
	}
	noFillable, _ := noBook.CostToFill(size.Decimal())
	if noFillable.LessThan(size.Decimal()) {
		return nil, false
	}

	expectedPayout := size
	cost := size.Mul(pairCost)
	expectedProfit := expectedPayout.Sub(cost)

	minProfit := size.MulFloat(d.cfg.MinProfitThreshold)
	if expectedProfit.LessThan(minProfit) {
		return nil, false
	}

	OpportunitiesDetectedTotal.Inc()
	if !pairCost.IsZero() {
		profitBps := expectedProfit.Float64() / size.Float64() * 10_000
		OpportunityProfitBPS.Observe(profitBps)
	}

	d.logger.Debug("arbitrage opportunity detected",
		"market_id", marketID,
		"pair_cost", pairCost.String(),
		"expected_profit", expectedProfit.String(),
	)

	return &types.ArbitrageOpportunity{
		MarketID:       marketID,
		YesAsk:         yesAsk,
		NoAsk:          noAsk,
		PairCost:       pairCost,
		Size:           size,
		ExpectedPayout: expectedPayout,
		ExpectedProfit: expectedProfit,
		DetectedAt:     detectedAtMs,
	}, true
}
