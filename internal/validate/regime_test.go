package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/validate"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func regimeSettlement(ts int64, start, end float64) types.SettlementResult {
	return types.SettlementResult{
		Bet:        types.BinaryBet{Timestamp: ts, Stake: money.New(100), Price: money.New(0.5)},
		StartPrice: start,
		EndPrice:   end,
		Outcome:    types.OutcomeWin,
	}
}

func TestClassifyTrendBucketsByThreshold(t *testing.T) {
	assert.Equal(t, validate.TrendBullish, validate.ClassifyTrend(0.01, 0.001))
	assert.Equal(t, validate.TrendBearish, validate.ClassifyTrend(-0.01, 0.001))
	assert.Equal(t, validate.TrendRanging, validate.ClassifyTrend(0.0001, 0.001))
}

func TestClassifySettlementsAssignsAllThreeDimensions(t *testing.T) {
	const hourMs = int64(3_600_000)
	settlements := []types.SettlementResult{
		regimeSettlement(0, 100, 101),              // hour 0, bullish
		regimeSettlement(15*hourMs, 100, 99),        // hour 15 (USOpen), bearish
	}
	volatility := []float64{1, 2}

	classes := validate.ClassifySettlements(settlements, volatility, validate.RegimeConfig{})
	require.Len(t, classes, 2)
	assert.Equal(t, validate.TrendBullish, classes[0].Trend)
	assert.Equal(t, validate.PeriodAsiaOpen, classes[0].TimePeriod)
	assert.Equal(t, validate.TrendBearish, classes[1].Trend)
	assert.Equal(t, validate.PeriodUSOpen, classes[1].TimePeriod)
}

func TestAggregateByRegimeGroupsMatchingBuckets(t *testing.T) {
	settlements := []types.SettlementResult{
		regimeSettlement(0, 100, 101),
		regimeSettlement(1, 100, 101),
	}
	classes := []validate.Classification{
		{Volatility: validate.VolatilityLow, Trend: validate.TrendBullish},
		{Volatility: validate.VolatilityLow, Trend: validate.TrendBullish},
	}
	agg := validate.AggregateByRegime(settlements, classes)
	require.Len(t, agg, 1)
	for _, summary := range agg {
		assert.Equal(t, 2, summary.Count)
	}
}

func TestCountTransitionsCountsRegimeChanges(t *testing.T) {
	classes := []validate.Classification{
		{Volatility: validate.VolatilityLow, Trend: validate.TrendBullish},
		{Volatility: validate.VolatilityLow, Trend: validate.TrendBullish},
		{Volatility: validate.VolatilityHigh, Trend: validate.TrendBearish},
	}
	assert.Equal(t, 1, validate.CountTransitions(classes))
}
