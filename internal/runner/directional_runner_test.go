package runner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func directionalDetector() *detect.DirectionalDetector {
	return detect.NewDirectionalDetector(detect.DirectionalConfig{
		MinWindowElapsedMs: 30_000,
		MinTimeRemainingMs: 60_000,
		MinChangePct:       0.0005,
		MaxEntryPrice:      decimal.RequireFromString("0.45"),
		Cooldown:           5 * time.Second,
	}, testLogger())
}

func newTestDirectionalRunner(nowFn func() int64, trackers map[types.Coin]*market.SpotPriceTracker) *DirectionalRunner {
	cfg := DirectionalRunnerConfig{Coins: []types.Coin{types.BTC}}
	return NewDirectionalRunner(cfg, &fakeDiscoveryClient{}, directionalDetector(), trackers, nowFn, testLogger())
}

func TestDirectionalRunnerTickForwardsBestEdgeSignal(t *testing.T) {
	now := int64(60_000)
	tr := market.NewSpotPriceTracker(100)
	tr.Update(78_000, 0)
	tr.Update(78_078, now) // +0.1%

	trackers := map[types.Coin]*market.SpotPriceTracker{types.BTC: tr}
	r := newTestDirectionalRunner(func() int64 { return now }, trackers)

	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-1", Coin: types.BTC, UpTokenID: "yes", DownTokenID: "no"},
		bookSpec{bid: "0.29", bidSize: "500", ask: "0.30", askSize: "500"},
		bookSpec{bid: "0.69", bidSize: "500", ask: "0.70", askSize: "500"})

	r.tick()

	select {
	case sig := <-r.Signals():
		assert.Equal(t, "market-1", sig.MarketID)
		assert.Equal(t, types.DirectionYes, sig.Direction)
	default:
		t.Fatal("expected a directional signal")
	}
}

func TestDirectionalRunnerSkipsCoinWithoutTracker(t *testing.T) {
	now := int64(60_000)
	r := newTestDirectionalRunner(func() int64 { return now }, map[types.Coin]*market.SpotPriceTracker{})

	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-1", Coin: types.BTC, UpTokenID: "yes", DownTokenID: "no"},
		bookSpec{bid: "0.29", bidSize: "500", ask: "0.30", askSize: "500"},
		bookSpec{bid: "0.69", bidSize: "500", ask: "0.70", askSize: "500"})

	assert.NotPanics(t, r.tick)

	select {
	case sig := <-r.Signals():
		t.Fatalf("unexpected signal: %+v", sig)
	default:
	}
}

func TestDirectionalRunnerWindowRolloverSkipsTick(t *testing.T) {
	now := int64(940_000) // 40s into the window starting at 900_000
	tr := market.NewSpotPriceTracker(100)
	tr.Update(100, 900_000)
	tr.Update(100.2, now)

	r := newTestDirectionalRunner(func() int64 { return now }, map[types.Coin]*market.SpotPriceTracker{types.BTC: tr})
	seedSlot(t, r.slots, discovery.MarketInfo{ConditionID: "market-1", Coin: types.BTC, UpTokenID: "yes", DownTokenID: "no"},
		bookSpec{bid: "0.29", bidSize: "500", ask: "0.30", askSize: "500"},
		bookSpec{bid: "0.69", bidSize: "500", ask: "0.70", askSize: "500"})

	r.tick() // establish lastWindowStart, no prior window to roll from
	<-r.Signals()

	now = 1_800_000 // rolled into the next window
	r.tick()

	select {
	case sig := <-r.Signals():
		t.Fatalf("expected no signal on the transition tick, got %+v", sig)
	default:
	}
	assert.Equal(t, 1, r.WindowRollovers())
}
