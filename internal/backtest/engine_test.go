package backtest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/backtest"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// fakePriceProvider serves a fixed map of (coin, timestamp) -> price,
// refusing any lookup outside the map so a test can prove the engine never
// queries a time it shouldn't.
type fakePriceProvider struct {
	prices map[int64]float64
}

func (p *fakePriceProvider) PriceAt(_ types.Coin, atMs int64) (float64, bool) {
	price, ok := p.prices[atMs]
	return price, ok
}

func TestEngineScenarioC60PercentWinRate(t *testing.T) {
	const windowMs = int64(900_000)
	prices := map[int64]float64{}
	signals := make([]backtest.Signal, 0, 100)

	for i := 0; i < 100; i++ {
		start := int64(i) * windowMs
		end := start + windowMs
		// First 60 signals go Yes and the price rises (win); last 40 go Yes
		// and the price falls (loss).
		if i < 60 {
			prices[start] = 100
			prices[end] = 101
		} else {
			prices[start] = 100
			prices[end] = 99
		}
		signals = append(signals, backtest.Signal{
			TimestampMs: start,
			MarketID:    "btc-window",
			Coin:        types.BTC,
			Direction:   types.DirectionYes,
			Strength:    1.0,
			EV:          1.0,
			Price:       money.New(0.50),
			Stake:       money.New(100),
		})
	}

	engine := backtest.NewEngine(backtest.Config{FeeRate: 0.02})
	result := engine.Run(signals, &fakePriceProvider{prices: prices})

	require.Equal(t, 100, result.SignalsProcessed)
	assert.Equal(t, 0, result.SignalsSkipped)
	assert.Equal(t, 1.0, result.FillRate)

	m := result.Metrics
	assert.Equal(t, 60, m.Wins)
	assert.Equal(t, 40, m.Losses)
	assert.True(t, m.NetPnL.Equal(money.New(1800)), "got %s", m.NetPnL)
	assert.InDelta(t, 0.60, m.WinRate, 1e-9)
	assert.Greater(t, m.WilsonLower, 0.50)
	assert.True(t, m.HasSignificantEdge)
}

func TestEngineRejectsNeutralSignal(t *testing.T) {
	engine := backtest.NewEngine(backtest.Config{})
	provider := &fakePriceProvider{prices: map[int64]float64{0: 100, 900_000: 101}}

	result := engine.Run([]backtest.Signal{{
		TimestampMs: 0,
		Coin:        types.BTC,
		Direction:   backtest.DirectionNeutral,
		Stake:       money.New(100),
	}}, provider)

	assert.Equal(t, 0, result.SignalsProcessed)
	assert.Equal(t, 1, result.SignalsSkipped)
}

func TestEngineSkipsSignalWithMissingPriceData(t *testing.T) {
	engine := backtest.NewEngine(backtest.Config{})
	// No entry for timestamp 0 at all.
	provider := &fakePriceProvider{prices: map[int64]float64{}}

	result := engine.Run([]backtest.Signal{{
		TimestampMs: 0,
		Coin:        types.BTC,
		Direction:   types.DirectionYes,
		Strength:    1.0,
		Stake:       money.New(100),
	}}, provider)

	assert.Equal(t, 0, result.SignalsProcessed)
	assert.Equal(t, 1, result.SignalsSkipped)
	assert.Equal(t, 0.0, result.FillRate)
}

func TestEngineAppliesThresholdFilters(t *testing.T) {
	engine := backtest.NewEngine(backtest.Config{MinStrength: 0.5, MinEV: 0.01})
	provider := &fakePriceProvider{prices: map[int64]float64{0: 100, 900_000: 101}}

	result := engine.Run([]backtest.Signal{{
		TimestampMs: 0,
		Coin:        types.BTC,
		Direction:   types.DirectionYes,
		Strength:    0.1, // below MinStrength
		EV:          1.0,
		Stake:       money.New(100),
	}}, provider)

	assert.Equal(t, 0, result.SignalsProcessed)
	assert.Equal(t, 1, result.SignalsSkipped)
}

func TestEnginePushOnFlatPriceChargesNoFees(t *testing.T) {
	engine := backtest.NewEngine(backtest.Config{FeeRate: 0.02})
	provider := &fakePriceProvider{prices: map[int64]float64{0: 100, 900_000: 100}}

	result := engine.Run([]backtest.Signal{{
		TimestampMs: 0,
		Coin:        types.BTC,
		Direction:   types.DirectionYes,
		Strength:    1.0,
		Price:       money.New(0.5),
		Stake:       money.New(100),
	}}, provider)

	require.Equal(t, 1, result.SignalsProcessed)
	require.Len(t, result.Settlements, 1)
	s := result.Settlements[0]
	assert.Equal(t, types.OutcomePush, s.Outcome)
	assert.True(t, s.Fees.IsZero())
	assert.True(t, s.GrossPnL().IsZero())
}

func TestComputeEmptySettlements(t *testing.T) {
	m := backtest.Compute(nil)
	assert.Equal(t, backtest.Empty(), m)
	assert.Equal(t, 1.0, m.PValue)
	assert.False(t, m.HasSignificantEdge)
}
