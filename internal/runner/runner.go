// Package runner wires each strategy's detector (internal/detect) to live
// market data: it discovers the currently tradeable markets, maintains a
// book feed per market and a spot tracker per coin, loops at a fixed
// interval evaluating the detector against the freshest snapshot, and
// forwards signals onto a bounded channel (the arbitrage and directional
// runners forward only the best signal per tick). It is
// generalized from a market-maker's single quote-reconciliation engine
// loop (one goroutine per market, context+WaitGroup lifecycle, token-ID
// routing) into three independent strategy loops, one per detector.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
)

// DefaultCheckInterval is how often a runner re-evaluates its detector
// against the freshest market snapshot.
const DefaultCheckInterval = 200 * time.Millisecond

// DefaultSignalBufferSize bounds a runner's output channel.
const DefaultSignalBufferSize = 100

// DefaultDiscoveryInterval is how often a runner re-polls discovery for
// the current set of tradeable markets.
const DefaultDiscoveryInterval = 30 * time.Second

// trySend applies every runner's shared backpressure policy: never block
// the market-data loop waiting for a slow consumer. A full channel drops
// the newest signal and logs at warn rather than blocking.
func trySend[T any](ch chan<- T, v T, logger *slog.Logger, what string) {
	select {
	case ch <- v:
	default:
		logger.Warn("signal channel full, dropping tick", "signal", what)
	}
}

// marketSlot is one actively book-fed market.
type marketSlot struct {
	info   discovery.MarketInfo
	feed   *market.BookFeed
	cancel context.CancelFunc
}

// slotTable tracks the set of markets a runner currently has book feeds
// running for, keyed by condition ID.
type slotTable struct {
	mu    sync.Mutex
	slots map[string]*marketSlot
}

func newSlotTable() *slotTable {
	return &slotTable{slots: make(map[string]*marketSlot)}
}

// reconcile diffs discovered against the currently running slots: stops
// feeds for markets no longer returned by discovery, starts feeds for
// newly discovered ones. Mirrors the teacher's scanner-diff reconcile
// loop, generalized from one market-maker engine to any strategy runner.
func (t *slotTable) reconcile(
	ctx context.Context,
	wg *sync.WaitGroup,
	discovered []discovery.MarketInfo,
	wsURL string,
	logger *slog.Logger,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	desired := make(map[string]discovery.MarketInfo, len(discovered))
	for _, m := range discovered {
		desired[m.ConditionID] = m
	}

	for id, slot := range t.slots {
		if _, ok := desired[id]; !ok {
			slot.cancel()
			delete(t.slots, id)
			logger.Info("market rolled out of scope, feed stopped", "condition_id", id)
		}
	}

	for id, info := range desired {
		if _, ok := t.slots[id]; ok {
			continue
		}
		slotCtx, cancel := context.WithCancel(ctx)
		feed := market.NewBookFeed(wsURL, []string{info.UpTokenID, info.DownTokenID}, logger)
		t.slots[id] = &marketSlot{info: info, feed: feed, cancel: cancel}

		wg.Add(1)
		go func(conditionID string, f *market.BookFeed) {
			defer wg.Done()
			if err := f.Run(slotCtx); err != nil && slotCtx.Err() == nil {
				logger.Error("book feed error", "condition_id", conditionID, "error", err)
			}
		}(id, feed)

		logger.Info("market discovered, feed started", "condition_id", id, "coin", string(info.Coin))
	}
}

// snapshot returns a point-in-time copy of the active slots, safe to range
// over without holding the table lock.
func (t *slotTable) snapshot() []*marketSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*marketSlot, 0, len(t.slots))
	for _, s := range t.slots {
		out = append(out, s)
	}
	return out
}

// stopAll cancels every running feed, used on shutdown.
func (t *slotTable) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		s.cancel()
	}
}
