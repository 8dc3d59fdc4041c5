package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type bookSpec struct {
	bid, bidSize, ask, askSize string
}

// seedSlot injects a market directly into a runner's slot table, bypassing
// reconcile()'s live book feed goroutine entirely: BookFeed's constructor
// already allocates one empty OrderBook per token ID, so GetBooks works
// immediately without Run() ever dialing a socket.
func seedSlot(t *testing.T, slots *slotTable, info discovery.MarketInfo, up, down bookSpec) {
	t.Helper()
	feed := market.NewBookFeed("wss://example.invalid/ws", []string{info.UpTokenID, info.DownTokenID}, testLogger())
	yes, no, ok := feed.GetBooks(info.UpTokenID, info.DownTokenID)
	require.True(t, ok)
	applySpec(t, yes, up)
	applySpec(t, no, down)

	slots.mu.Lock()
	slots.slots[info.ConditionID] = &marketSlot{info: info, feed: feed, cancel: func() {}}
	slots.mu.Unlock()
}

func applySpec(t *testing.T, b *market.OrderBook, spec bookSpec) {
	t.Helper()
	require.NoError(t, b.ApplySnapshot(
		[]market.PriceLevel{{Price: decimal.RequireFromString(spec.bid), Size: decimal.RequireFromString(spec.bidSize)}},
		[]market.PriceLevel{{Price: decimal.RequireFromString(spec.ask), Size: decimal.RequireFromString(spec.askSize)}},
	))
}

// fakeDiscoveryClient returns a fixed market list, never touching the
// network.
type fakeDiscoveryClient struct {
	markets []discovery.MarketInfo
	err     error
}

func (f *fakeDiscoveryClient) CurrentWindowMarkets(_ context.Context, _ []types.Coin, _ int64) ([]discovery.MarketInfo, error) {
	return f.markets, f.err
}
