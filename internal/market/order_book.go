// Package market implements the local market-data fabric: the L2 order
// book mirror, the WebSocket book feed that keeps it current, and the
// spot-price tracker with its window-reference capture. It is adapted
// from the order-book mirroring pattern of a single-market maker into a
// decimal-accurate, multi-market ladder this spec's cost-to-fill and
// crossed-book checks require.
package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// PriceLevel is a single ladder rung.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ErrCrossedBook is returned (and the book cleared) when an apply would
// leave best_bid > best_ask.
var ErrCrossedBook = fmt.Errorf("market: crossed order book")

// OrderBook is a single Polymarket token's L2 ladder: bids sorted
// descending, asks sorted ascending, all prices strictly less than 1.
type OrderBook struct {
	mu            sync.RWMutex
	TokenID       string
	bids          []PriceLevel // descending by price
	asks          []PriceLevel // ascending by price
	lastSequence  uint64
	ready         bool
}

// NewOrderBook creates an empty book for tokenID.
func NewOrderBook(tokenID string) *OrderBook {
	return &OrderBook{TokenID: tokenID}
}

// ApplySnapshot clears the book and replaces it with bids/asks, dropping
// zero-size levels and enforcing sort order. Idempotent: applying the same
// snapshot twice leaves an equal book.
func (b *OrderBook) ApplySnapshot(bids, asks []PriceLevel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = filterAndSort(bids, true)
	b.asks = filterAndSort(asks, false)
	b.ready = true

	if crossed(b.bids, b.asks) {
		b.clearLocked()
		return ErrCrossedBook
	}
	return nil
}

func filterAndSort(levels []PriceLevel, descending bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Size.IsZero() {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return dedupeLevels(out)
}

// dedupeLevels collapses duplicate price levels (last write wins), since
// the book must never hold two entries at the same price.
func dedupeLevels(levels []PriceLevel) []PriceLevel {
	seen := make(map[string]int, len(levels))
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		key := l.Price.String()
		if idx, ok := seen[key]; ok {
			out[idx] = l
			continue
		}
		seen[key] = len(out)
		out = append(out, l)
	}
	return out
}

func crossed(bids, asks []PriceLevel) bool {
	if len(bids) == 0 || len(asks) == 0 {
		return false
	}
	return bids[0].Price.GreaterThan(asks[0].Price)
}

// ApplyDelta inserts, updates, or (on zero size) removes a single level.
// After applying, if the book would be crossed it is cleared and
// ErrCrossedBook is returned; the caller (BookFeed) must resnapshot.
func (b *OrderBook) ApplyDelta(side types.Side, price, size decimal.Decimal, sequence uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if side == types.Buy {
		b.bids = upsertLevel(b.bids, price, size, true)
	} else {
		b.asks = upsertLevel(b.asks, price, size, false)
	}
	b.lastSequence = sequence

	if crossed(b.bids, b.asks) {
		b.clearLocked()
		return ErrCrossedBook
	}
	return nil
}

func upsertLevel(levels []PriceLevel, price, size decimal.Decimal, descending bool) []PriceLevel {
	for i, l := range levels {
		if l.Price.Equal(price) {
			if size.IsZero() {
				return append(levels[:i], levels[i+1:]...)
			}
			levels[i].Size = size
			return levels
		}
	}
	if size.IsZero() {
		return levels
	}
	levels = append(levels, PriceLevel{Price: price, Size: size})
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels
}

func (b *OrderBook) clearLocked() {
	b.bids = nil
	b.asks = nil
	b.ready = false
}

// Clear empties the book; called by BookFeed on reconnect or crossed-book
// recovery. The book must be resnapshotted before it is ready again.
func (b *OrderBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

// IsReady reports whether the book has received at least one valid
// snapshot since the last clear.
func (b *OrderBook) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// BestBid returns the highest bid, if any.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the lowest ask, if any.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price, true
}

// BestAskMoney is a money-typed convenience wrapper over BestAsk, used by
// the arbitrage detector.
func (b *OrderBook) BestAskMoney() (money.Money, bool) {
	p, ok := b.BestAsk()
	if !ok {
		return money.Zero, false
	}
	return money.NewFromDecimal(p), true
}

// DepthAt returns the total size resting at exactly price on the ask side
// (used for quick depth checks; CostToFill walks the full ladder).
func (b *OrderBook) DepthAt(price decimal.Decimal) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.asks {
		if l.Price.Equal(price) {
			return l.Size
		}
	}
	return decimal.Zero
}

// CostToFill walks the ask ladder accumulating cost
// sum(p_i * min(remaining, s_i)) until size is satisfied or the book is
// exhausted. Returns the size actually fillable and its cost.
func (b *OrderBook) CostToFill(size decimal.Decimal) (fillable, cost decimal.Decimal) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	remaining := size
	fillable = decimal.Zero
	cost = decimal.Zero

	for _, l := range b.asks {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, l.Size)
		cost = cost.Add(take.Mul(l.Price))
		fillable = fillable.Add(take)
		remaining = remaining.Sub(take)
	}
	return fillable, cost
}

// LastSequence returns the book's last applied delta sequence number.
func (b *OrderBook) LastSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSequence
}
