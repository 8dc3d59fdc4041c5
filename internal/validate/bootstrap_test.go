package validate_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/validate"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func winSettlement(stake, price float64) types.SettlementResult {
	return types.SettlementResult{
		Bet:    types.BinaryBet{Stake: money.New(stake), Price: money.New(price)},
		Outcome: types.OutcomeWin,
	}
}

func lossSettlement(stake, price float64) types.SettlementResult {
	return types.SettlementResult{
		Bet:    types.BinaryBet{Stake: money.New(stake), Price: money.New(price)},
		Outcome: types.OutcomeLoss,
	}
}

func TestBootstrapStatisticIsReproducibleForAFixedSeed(t *testing.T) {
	sample := []float64{1, 0, 1, 1, 0, 1, 0, 1, 1, 0}
	cfg := func() validate.BootstrapConfig {
		return validate.BootstrapConfig{Iterations: 2000, Rand: rand.New(rand.NewSource(42))}
	}

	r1 := validate.BootstrapStatistic(sample, func(s []float64) float64 {
		sum := 0.0
		for _, v := range s {
			sum += v
		}
		return sum / float64(len(s))
	}, cfg())
	r2 := validate.BootstrapStatistic(sample, func(s []float64) float64 {
		sum := 0.0
		for _, v := range s {
			sum += v
		}
		return sum / float64(len(s))
	}, cfg())

	assert.Equal(t, r1, r2)
	assert.InDelta(t, 0.6, r1.Estimate, 1e-9)
	assert.True(t, r1.Lower <= r1.Estimate+1e-9)
}

func TestBootstrapWinRateExcludesPushes(t *testing.T) {
	settlements := []types.SettlementResult{
		winSettlement(100, 0.5),
		winSettlement(100, 0.5),
		lossSettlement(100, 0.5),
		{Bet: types.BinaryBet{Stake: money.New(100), Price: money.New(0.5)}, Outcome: types.OutcomePush},
	}
	r := validate.BootstrapWinRate(settlements, validate.BootstrapConfig{Iterations: 1000, Rand: rand.New(rand.NewSource(7))})
	require.InDelta(t, 2.0/3.0, r.Estimate, 1e-9)
	assert.GreaterOrEqual(t, r.Upper, r.Lower)
}

func TestBootstrapMaxDrawdownOnMonotoneLossesEqualsTotalLoss(t *testing.T) {
	settlements := []types.SettlementResult{
		lossSettlement(100, 0.5),
		lossSettlement(100, 0.5),
		lossSettlement(100, 0.5),
	}
	r := validate.BootstrapMaxDrawdown(settlements, validate.BootstrapConfig{Iterations: 500, Rand: rand.New(rand.NewSource(3))})
	assert.InDelta(t, 300, r.Estimate, 1e-9)
}

func TestBootstrapStatisticEmptySampleReturnsOnlyPointEstimate(t *testing.T) {
	r := validate.BootstrapStatistic(nil, func(s []float64) float64 { return 99 }, validate.BootstrapConfig{})
	assert.Equal(t, validate.BootstrapResult{Estimate: 99}, r)
}
