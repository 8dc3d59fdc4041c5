package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func arbitrageDetector() *detect.ArbitrageDetector {
	return detect.NewArbitrageDetector(detect.ArbitrageConfig{
		MaxPairCost:        money.New(0.98),
		MinProfitThreshold: 0.02,
	}, testLogger())
}

func newTestArbitrageRunner(nowFn func() int64) *ArbitrageRunner {
	cfg := ArbitrageRunnerConfig{
		Coins:     []types.Coin{types.BTC},
		TradeSize: money.New(100),
	}
	return NewArbitrageRunner(cfg, &fakeDiscoveryClient{}, arbitrageDetector(), nowFn, testLogger())
}

func TestArbitrageRunnerTickPicksBestByExpectedProfit(t *testing.T) {
	now := int64(60_000)
	r := newTestArbitrageRunner(func() int64 { return now })

	// market-1: pair_cost = 0.95, expected_profit = 5.00 on size 100.
	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-1", Coin: types.BTC, UpTokenID: "m1-yes", DownTokenID: "m1-no"},
		bookSpec{bid: "0.46", bidSize: "500", ask: "0.47", askSize: "500"},
		bookSpec{bid: "0.47", bidSize: "500", ask: "0.48", askSize: "500"})

	// market-2: pair_cost = 0.90, expected_profit = 10.00 on size 100 — the better opportunity.
	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-2", Coin: types.BTC, UpTokenID: "m2-yes", DownTokenID: "m2-no"},
		bookSpec{bid: "0.43", bidSize: "500", ask: "0.44", askSize: "500"},
		bookSpec{bid: "0.45", bidSize: "500", ask: "0.46", askSize: "500"})

	r.tick()

	select {
	case opp := <-r.Signals():
		assert.Equal(t, "market-2", opp.MarketID)
		assert.True(t, opp.ExpectedProfit.Equal(money.New(10.00)), "got %s", opp.ExpectedProfit)
	default:
		t.Fatal("expected an opportunity on the signal channel")
	}

	// Only the single best opportunity is forwarded per tick.
	select {
	case opp := <-r.Signals():
		t.Fatalf("unexpected second signal: %+v", opp)
	default:
	}
}

func TestArbitrageRunnerWindowRolloverEmitsNothing(t *testing.T) {
	now := int64(900_000) // start of a fresh window
	r := newTestArbitrageRunner(func() int64 { return now })

	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-1", Coin: types.BTC, UpTokenID: "yes", DownTokenID: "no"},
		bookSpec{bid: "0.46", bidSize: "500", ask: "0.47", askSize: "500"},
		bookSpec{bid: "0.47", bidSize: "500", ask: "0.48", askSize: "500"})

	r.tick() // establishes lastWindowStart
	<-r.Signals()

	now = 900_100 // still the same window, another opportunity tick
	r.tick()
	select {
	case <-r.Signals():
	default:
		t.Fatal("expected a signal within the same window")
	}

	now = 900_000 + 900_000 // rolled into the next window
	r.tick()

	select {
	case opp := <-r.Signals():
		t.Fatalf("expected no signal on the transition tick, got %+v", opp)
	default:
	}
	assert.Equal(t, 1, r.WindowRollovers())
}

func TestArbitrageRunnerTickSkipsUnreadyMarket(t *testing.T) {
	r := newTestArbitrageRunner(func() int64 { return 60_000 })
	info := discovery.MarketInfo{ConditionID: "no-books", UpTokenID: "missing-yes", DownTokenID: "missing-no"}
	feed := market.NewBookFeed("wss://example.invalid/ws", []string{"other-token"}, testLogger())
	r.slots.mu.Lock()
	r.slots.slots["no-books"] = &marketSlot{info: info, feed: feed, cancel: func() {}}
	r.slots.mu.Unlock()

	require.NotPanics(t, func() { r.tick() })

	select {
	case opp := <-r.Signals():
		t.Fatalf("unexpected signal: %+v", opp)
	default:
	}
}
