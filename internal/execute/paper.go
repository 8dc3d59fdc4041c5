package execute

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// DefaultFillRate is the probability a paper FOK order fills, absent
// explicit configuration.
const DefaultFillRate = 0.85

// BookSource resolves the live order book for a token ID, used by the
// paper executor to price a simulated fill against the order book the
// detector actually saw.
type BookSource interface {
	Book(tokenID string) (*market.OrderBook, bool)
}

// PaperExecutor simulates fills probabilistically: each submitted order
// fills with probability FillRate (default 0.85) at the price the book
// was observed at, otherwise it is rejected outright. It is stateless
// beyond a monotonic order counter and a session balance.
type PaperExecutor struct {
	FillRate float64
	books    BookSource
	logger   *slog.Logger
	rng      *rand.Rand
	// rollFn overrides the fill-probability roll when non-nil, letting
	// tests and backtests pin exact fill/reject outcomes per token ID.
	rollFn func(tokenID string) float64

	mu          sync.Mutex
	orderSeq    uint64
	balance     money.Money
	circuitOpen bool
}

// NewPaperExecutor creates a paper executor seeded with initialBalance and
// an explicit random source (pass a seeded *rand.Rand for deterministic
// replay in tests and backtests).
func NewPaperExecutor(books BookSource, initialBalance money.Money, fillRate float64, rng *rand.Rand, logger *slog.Logger) *PaperExecutor {
	if fillRate < 0 || fillRate > 1 {
		fillRate = DefaultFillRate
	}
	return &PaperExecutor{
		FillRate: fillRate,
		books:    books,
		logger:   logger.With("component", "paper_executor"),
		rng:      rng,
		balance:  initialBalance,
	}
}

// WithDeterministicRolls overrides the fill-probability roll per token ID,
// for scenario tests and backtest replay where the exact fill outcome must
// be pinned rather than sampled.
func (p *PaperExecutor) WithDeterministicRolls(rollFn func(tokenID string) float64) *PaperExecutor {
	p.rollFn = rollFn
	return p
}

// SubmitFOK simulates a fill-or-kill order: fills at the best ask/bid the
// book currently shows with probability FillRate, else rejects.
func (p *PaperExecutor) SubmitFOK(ctx context.Context, tokenID string, side types.Side, limitPrice, size money.Money) (Fill, error) {
	p.mu.Lock()
	p.orderSeq++
	var roll float64
	if p.rollFn != nil {
		roll = p.rollFn(tokenID)
	} else {
		roll = p.rng.Float64()
	}
	p.mu.Unlock()

	book, ok := p.books.Book(tokenID)
	if !ok {
		return Fill{TokenID: tokenID, Side: side, RequestedSize: size, Filled: false}, nil
	}

	var observedPrice money.Money
	if side == types.Buy {
		ask, ok := book.BestAskMoney()
		if !ok || ask.GreaterThan(limitPrice) {
			return Fill{TokenID: tokenID, Side: side, RequestedSize: size, Filled: false}, nil
		}
		observedPrice = ask
	} else {
		bid, ok := book.BestBid()
		if !ok {
			return Fill{TokenID: tokenID, Side: side, RequestedSize: size, Filled: false}, nil
		}
		observedPrice = money.NewFromDecimal(bid)
	}

	if roll > p.FillRate {
		p.logger.Debug("paper order rejected by fill-rate roll", "token_id", tokenID, "roll", roll)
		return Fill{TokenID: tokenID, Side: side, RequestedSize: size, Filled: false}, nil
	}

	p.debitOrCredit(side, observedPrice, size)

	return Fill{
		TokenID:       tokenID,
		Side:          side,
		RequestedSize: size,
		FilledSize:    size,
		Price:         observedPrice,
		Filled:        true,
	}, nil
}

// SubmitMarketSell simulates an immediate market sell at the current best
// bid; paper unwinds always succeed if a bid exists.
func (p *PaperExecutor) SubmitMarketSell(ctx context.Context, tokenID string, size money.Money) (Fill, error) {
	book, ok := p.books.Book(tokenID)
	if !ok {
		return Fill{TokenID: tokenID, Side: types.Sell, RequestedSize: size, Filled: false}, nil
	}
	bid, ok := book.BestBid()
	if !ok {
		return Fill{TokenID: tokenID, Side: types.Sell, RequestedSize: size, Filled: false}, nil
	}

	price := money.NewFromDecimal(bid)
	p.debitOrCredit(types.Sell, price, size)

	return Fill{
		TokenID:       tokenID,
		Side:          types.Sell,
		RequestedSize: size,
		FilledSize:    size,
		Price:         price,
		Filled:        true,
	}, nil
}

func (p *PaperExecutor) debitOrCredit(side types.Side, price, size money.Money) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cost := price.Mul(size)
	if side == types.Buy {
		p.balance = p.balance.Sub(cost)
	} else {
		p.balance = p.balance.Add(cost)
	}
}

// GetBalance returns the simulated session balance.
func (p *PaperExecutor) GetBalance(ctx context.Context) (money.Money, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// CheckCircuitBreaker always permits trading; the paper executor has no
// real funds at risk, so it never trips.
func (p *PaperExecutor) CheckCircuitBreaker() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.circuitOpen {
		return ErrCircuitBreakerOpen
	}
	return nil
}

// RecordPnL is a no-op beyond balance tracking, which SubmitFOK/SubmitMarketSell
// already perform; kept to satisfy PolymarketExecutor.
func (p *PaperExecutor) RecordPnL(pnl money.Money) {}
