package detect_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/detect"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func scenarioDConfig() detect.DirectionalConfig {
	return detect.DirectionalConfig{
		MinWindowElapsedMs: 30_000,
		MinTimeRemainingMs: 60_000,
		MinChangePct:       0.0005,
		MaxEntryPrice:      decimal.RequireFromString("0.45"),
		Cooldown:           5 * time.Second,
	}
}

func TestDirectionalDetectorScenarioD(t *testing.T) {
	tr := market.NewSpotPriceTracker(100)
	// Reference price 78_000 captured at the window start (t=0).
	tr.Update(78_000, 0)

	d := detect.NewDirectionalDetector(scenarioDConfig(), testLogger())

	// +60s: spot = 78_078 (+0.1%), crosses the threshold, up_ask 0.30 <= 0.45, emits BuyUp (Yes).
	tr.Update(78_078, 60_000)
	sig, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 60_000)
	require.True(t, ok)
	assert.Equal(t, types.DirectionYes, sig.Direction)
	assert.True(t, sig.EntryPrice.Equal(money.New(0.30)))

	// +65s: same inputs, exactly 5s after the last emit — still within cooldown.
	tr.Update(78_078, 65_000)
	_, ok = d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 65_000)
	assert.False(t, ok)

	// +75s: 15s after the last emit, cooldown has elapsed; emits again.
	tr.Update(78_150, 75_000)
	sig2, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 75_000)
	require.True(t, ok)
	assert.Equal(t, types.DirectionYes, sig2.Direction)
}

func TestDirectionalDetectorRejectsAboveMaxEntryPrice(t *testing.T) {
	tr := market.NewSpotPriceTracker(100)
	tr.Update(78_000, 0)
	tr.Update(78_078, 60_000)

	d := detect.NewDirectionalDetector(scenarioDConfig(), testLogger())
	_, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.50), money.New(0.70), 60_000)
	assert.False(t, ok, "up_ask 0.50 exceeds max_entry_price 0.45")
}

func TestDirectionalDetectorRejectsBeforeMinWindowElapsed(t *testing.T) {
	tr := market.NewSpotPriceTracker(100)
	tr.Update(78_000, 0)
	tr.Update(78_078, 10_000)

	d := detect.NewDirectionalDetector(scenarioDConfig(), testLogger())
	_, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 10_000)
	assert.False(t, ok, "only 10s elapsed in window, below the 30s min")
}

func TestDirectionalDetectorResetsCooldownOnNewWindow(t *testing.T) {
	tr := market.NewSpotPriceTracker(100)
	tr.Update(100, 900_000)

	cfg := detect.DirectionalConfig{
		MinWindowElapsedMs: 0,
		MinTimeRemainingMs: 0,
		MinChangePct:       0.001,
		MaxEntryPrice:      decimal.RequireFromString("0.45"),
		Cooldown:           time.Hour,
	}
	d := detect.NewDirectionalDetector(cfg, testLogger())

	tr.Update(101, 900_500)
	_, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 900_500)
	require.True(t, ok)

	// Still within cooldown, same window: suppressed.
	tr.Update(102, 900_600)
	_, ok = d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 900_600)
	assert.False(t, ok)

	// New window: cooldown resets even though simulated time hasn't advanced
	// by a full cooldown period. The first update of the new window captures
	// its own reference (no change yet); a second update within the same
	// window then crosses the threshold against that fresh reference.
	newWindowStart := int64(900_000 + 900_000)
	tr.Update(100, newWindowStart)
	tr.Update(101, newWindowStart+100)
	_, ok = d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), newWindowStart+100)
	assert.True(t, ok)
}

func TestDirectionalDetectorNoSignalBelowThreshold(t *testing.T) {
	tr := market.NewSpotPriceTracker(100)
	tr.Update(100, 0)
	tr.Update(100.01, 40_000)

	d := detect.NewDirectionalDetector(scenarioDConfig(), testLogger())

	_, ok := d.Evaluate("market-1", types.BTC, tr, money.New(0.30), money.New(0.70), 40_000)
	assert.False(t, ok)
}
