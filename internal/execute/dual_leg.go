package execute

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

var (
	ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_executions_total",
		Help: "Total dual-leg execution attempts, by result kind.",
	}, []string{"kind"})
	ExecutionDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_execution_duration_seconds",
		Help:    "Wall-clock duration of a dual-leg execution attempt.",
		Buckets: prometheus.DefBuckets,
	})
	ExecutionErrorsByType = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_execution_errors_total",
		Help: "Execution errors, classified by coarse type.",
	}, []string{"type"})
	ProfitRealizedUSD = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_profit_realized_usd",
		Help: "Cumulative realized profit in USD, by executor mode.",
	}, []string{"mode"})
	UnwindImbalanceUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_unwind_imbalance_usd",
		Help: "Running residual exposure left by unsuccessful unwinds.",
	})
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDurationSeconds,
		ExecutionErrorsByType,
		ProfitRealizedUSD,
		UnwindImbalanceUSD,
	)
}

// DualLegExecutor implements the §4.10 dual-leg FOK contract: it submits a
// YES and a NO buy concurrently, waits for both, and unwinds whichever
// single leg filled if the pair didn't both go through.
type DualLegExecutor struct {
	impl   PolymarketExecutor
	mode   string
	logger *slog.Logger

	mu               sync.Mutex
	cumulativeProfit money.Money
}

// NewDualLegExecutor wraps a concrete PolymarketExecutor (paper or live).
func NewDualLegExecutor(impl PolymarketExecutor, mode string, logger *slog.Logger) *DualLegExecutor {
	return &DualLegExecutor{
		impl:   impl,
		mode:   mode,
		logger: logger.With("component", "dual_leg_executor", "mode", mode),
	}
}

// Execute submits opportunity's YES and NO legs concurrently as
// Fill-Or-Kill buys for size shares each, unwinding a lone fill and never
// leaving unbounded exposure.
func (e *DualLegExecutor) Execute(ctx context.Context, yesTokenID, noTokenID string, yesLimit, noLimit, size money.Money) DualLegResult {
	start := time.Now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if err := e.impl.CheckCircuitBreaker(); err != nil {
		ExecutionsTotal.WithLabelValues(string(DualLegError)).Inc()
		return DualLegResult{Kind: DualLegError, Message: err.Error()}
	}

	var yesFill, noFill Fill
	var yesErr, noErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		yesFill, yesErr = e.impl.SubmitFOK(ctx, yesTokenID, types.Buy, yesLimit, size)
	}()
	go func() {
		defer wg.Done()
		noFill, noErr = e.impl.SubmitFOK(ctx, noTokenID, types.Buy, noLimit, size)
	}()
	wg.Wait()

	if yesErr != nil || noErr != nil {
		ExecutionsTotal.WithLabelValues(string(DualLegError)).Inc()
		if yesErr != nil {
			ExecutionErrorsByType.WithLabelValues(classifyError(yesErr)).Inc()
		}
		if noErr != nil {
			ExecutionErrorsByType.WithLabelValues(classifyError(noErr)).Inc()
		}
		return DualLegResult{Kind: DualLegError, YesResult: yesErr, NoResult: noErr, Message: "transport or signing error"}
	}

	switch {
	case yesFill.Filled && noFill.Filled:
		totalCost := yesFill.Price.Mul(yesFill.FilledSize).Add(noFill.Price.Mul(noFill.FilledSize))
		payout := money.Min(yesFill.FilledSize, noFill.FilledSize)
		netProfit := payout.Sub(totalCost)

		e.mu.Lock()
		e.cumulativeProfit = e.cumulativeProfit.Add(netProfit)
		e.mu.Unlock()

		e.impl.RecordPnL(netProfit)
		ProfitRealizedUSD.WithLabelValues(e.mode).Add(netProfit.Float64())
		ExecutionsTotal.WithLabelValues(string(DualLegSuccess)).Inc()

		e.logger.Info("dual-leg execution succeeded",
			"total_cost", totalCost.String(),
			"net_profit", netProfit.String(),
		)

		return DualLegResult{
			Kind:      DualLegSuccess,
			YesFill:   yesFill,
			NoFill:    noFill,
			TotalCost: totalCost,
			NetProfit: netProfit,
		}

	case yesFill.Filled && !noFill.Filled:
		return e.unwindSingleLeg(ctx, DualLegYesOnlyFilled, yesTokenID, yesFill)

	case !yesFill.Filled && noFill.Filled:
		return e.unwindSingleLeg(ctx, DualLegNoOnlyFilled, noTokenID, noFill)

	default:
		ExecutionsTotal.WithLabelValues(string(DualLegBothRejected)).Inc()
		e.logger.Debug("both legs rejected, no exposure")
		return DualLegResult{Kind: DualLegBothRejected}
	}
}

func (e *DualLegExecutor) unwindSingleLeg(ctx context.Context, kind DualLegResultKind, tokenID string, fill Fill) DualLegResult {
	e.logger.Warn("partial fill, unwinding single leg", "token_id", tokenID, "filled_size", fill.FilledSize.String())

	unwind, err := e.impl.SubmitMarketSell(ctx, tokenID, fill.FilledSize)
	result := DualLegResult{Kind: kind}
	if kind == DualLegYesOnlyFilled {
		result.YesFill = fill
	} else {
		result.NoFill = fill
	}

	if err != nil {
		ExecutionErrorsByType.WithLabelValues(classifyError(err)).Inc()
		e.logger.Error("unwind failed, residual imbalance remains", "error", err)
		result.UnwindResult = &Fill{TokenID: tokenID, Side: types.Sell, RequestedSize: fill.FilledSize, Filled: false}
		UnwindImbalanceUSD.Add(fill.FilledSize.Mul(fill.Price).Float64())
		ExecutionsTotal.WithLabelValues(string(kind)).Inc()
		return result
	}

	result.UnwindResult = &unwind

	if !unwind.Filled {
		// No bid was available to unwind into: the position stays open, not
		// a realized loss. Treat it exactly like a transport error for
		// imbalance tracking.
		e.logger.Error("unwind found no bid, residual imbalance remains", "token_id", tokenID)
		UnwindImbalanceUSD.Add(fill.FilledSize.Mul(fill.Price).Float64())
		ExecutionsTotal.WithLabelValues(string(kind)).Inc()
		return result
	}

	netProfit := unwind.Price.Mul(unwind.FilledSize).Sub(fill.Price.Mul(fill.FilledSize))
	e.mu.Lock()
	e.cumulativeProfit = e.cumulativeProfit.Add(netProfit)
	e.mu.Unlock()
	e.impl.RecordPnL(netProfit)

	ExecutionsTotal.WithLabelValues(string(kind)).Inc()
	e.logger.Info("unwound partial fill", "token_id", tokenID, "net_profit", netProfit.String())

	return result
}

// CumulativeProfit returns the running realized profit across every
// Execute call this executor has made.
func (e *DualLegExecutor) CumulativeProfit() money.Money {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cumulativeProfit
}
