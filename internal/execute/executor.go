// Package execute implements the dual-leg FOK execution contract and its
// paper and live implementations, grounded on a production arbitrage bot's
// paper/live executor split and async fill-verification pattern.
package execute

import (
	"context"
	"errors"
	"strings"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// ErrCircuitBreakerOpen is returned by PolymarketExecutor implementations
// when a caller attempts to submit an order while the circuit breaker is
// tripped.
var ErrCircuitBreakerOpen = errors.New("execute: circuit breaker open")

// Fill is the realized result of one FOK (or market-sell unwind) order.
type Fill struct {
	TokenID     string
	Side        types.Side
	RequestedSize money.Money
	FilledSize  money.Money
	Price       money.Money
	Filled      bool
}

// PolymarketExecutor is the capability set both paper and live executors
// satisfy; the dual-leg executor is polymorphic over this interface alone.
type PolymarketExecutor interface {
	// SubmitFOK submits a fill-or-kill buy for size shares of tokenID at
	// (or better than) limitPrice. Returns a Fill with Filled=false (not
	// an error) when the order is killed for lack of liquidity.
	SubmitFOK(ctx context.Context, tokenID string, side types.Side, limitPrice, size money.Money) (Fill, error)
	// SubmitMarketSell immediately sells size shares of tokenID at the
	// best available bid, used to unwind a single filled leg.
	SubmitMarketSell(ctx context.Context, tokenID string, size money.Money) (Fill, error)
	// GetBalance returns the current available trading balance.
	GetBalance(ctx context.Context) (money.Money, error)
	// CheckCircuitBreaker returns nil if trading may proceed, or
	// ErrCircuitBreakerOpen (wrapped) if it is tripped.
	CheckCircuitBreaker() error
	// RecordPnL records a realized profit/loss for session accounting.
	RecordPnL(pnl money.Money)
}

// DualLegResultKind discriminates the sum type returned by Execute.
type DualLegResultKind string

const (
	DualLegSuccess       DualLegResultKind = "Success"
	DualLegYesOnlyFilled DualLegResultKind = "YesOnlyFilled"
	DualLegNoOnlyFilled  DualLegResultKind = "NoOnlyFilled"
	DualLegBothRejected  DualLegResultKind = "BothRejected"
	DualLegError         DualLegResultKind = "Error"
)

// DualLegResult is the tagged-union outcome of one dual-leg execution
// attempt. Only the fields relevant to Kind are populated.
type DualLegResult struct {
	Kind DualLegResultKind

	YesFill Fill
	NoFill  Fill

	TotalCost  money.Money
	NetProfit  money.Money

	UnwindResult *Fill // set (possibly unsuccessful) whenever exactly one leg filled

	YesResult error // populated in Error for diagnostics
	NoResult  error

	Message string // populated in Error
}

// classifyError buckets a transport/signing error into a coarse class for
// metrics, following the substring-classification approach of production
// Polymarket bots: network, api, validation, funds, or unknown.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "connection refused", "timeout", "dial", "eof", "network"):
		return "network"
	case containsAny(msg, "api error", "invalid", "bad request", "400", "403", "404", "500"):
		return "api"
	case containsAny(msg, "missing", "required", "not configured"):
		return "validation"
	case containsAny(msg, "insufficient", "balance", "funds"):
		return "funds"
	default:
		return "unknown"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
