package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/validate"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func strengthSettlement(ts int64, strength float64, outcome types.Outcome) types.SettlementResult {
	return types.SettlementResult{
		Bet: types.BinaryBet{
			Timestamp:      ts,
			SignalStrength: strength,
			Stake:          money.New(100),
			Price:          money.New(0.5),
		},
		Outcome: outcome,
	}
}

func TestPartitionBySignalStrengthBucketsCorrectly(t *testing.T) {
	settlements := []types.SettlementResult{
		strengthSettlement(0, 0.1, types.OutcomeWin),
		strengthSettlement(1, 0.5, types.OutcomeWin),
		strengthSettlement(2, 0.9, types.OutcomeLoss),
	}
	parts := validate.PartitionBySignalStrength(settlements, []float64{0.3, 0.7})
	require.Len(t, parts, 3)
	assert.Equal(t, 1, parts[0].Measurement.N)
	assert.Equal(t, 1, parts[1].Measurement.N)
	assert.Equal(t, 1, parts[2].Measurement.N)
}

func TestPartitionByUTCHourGroupsByHour(t *testing.T) {
	const hourMs = int64(3_600_000)
	settlements := []types.SettlementResult{
		strengthSettlement(0, 0.5, types.OutcomeWin),          // hour 0
		strengthSettlement(hourMs, 0.5, types.OutcomeLoss),    // hour 1
		strengthSettlement(hourMs+60_000, 0.5, types.OutcomeWin), // still hour 1
	}
	byHour := validate.PartitionByUTCHour(settlements)
	assert.Equal(t, 1, byHour[0].N)
	assert.Equal(t, 2, byHour[1].N)
}

func TestPartitionByVolatilityTercileSplitsIntoThreeBuckets(t *testing.T) {
	settlements := make([]types.SettlementResult, 9)
	volatility := make([]float64, 9)
	for i := range settlements {
		settlements[i] = strengthSettlement(int64(i), 0.5, types.OutcomeWin)
		volatility[i] = float64(i)
	}
	parts := validate.PartitionByVolatilityTercile(settlements, volatility)
	require.Len(t, parts, 3)
	total := 0
	for _, p := range parts {
		total += p.Measurement.N
	}
	assert.Equal(t, 9, total)
}

func TestDetectEdgeDecayFlagsNegativeSignificantSlope(t *testing.T) {
	var settlements []types.SettlementResult
	for i := 0; i < 100; i++ {
		outcome := types.OutcomeLoss
		if i < 50 {
			if i%5 != 4 {
				outcome = types.OutcomeWin
			}
		} else if (i-50)%10 < 3 {
			outcome = types.OutcomeWin
		}
		settlements = append(settlements, strengthSettlement(int64(i), 0.5, outcome))
	}
	result := validate.DetectEdgeDecay(settlements, 20, 0.05)
	assert.Less(t, result.Slope, 0.0)
	assert.True(t, result.IsDecaying)
}

func TestDetectEdgeDecayTooFewWindowsReturnsZeroValue(t *testing.T) {
	settlements := []types.SettlementResult{strengthSettlement(0, 0.5, types.OutcomeWin)}
	result := validate.DetectEdgeDecay(settlements, 50, 0.05)
	assert.Equal(t, validate.DecayResult{}, result)
}

func TestSummarizeStrongEdgeSuggestsHalfKelly(t *testing.T) {
	m := validate.EdgeMeasurement{PValue: 0.01, WilsonLower: 0.6, Edge: 0.10}
	rec := validate.Summarize(m)
	assert.Equal(t, validate.EdgeStrong, rec.Strength)
	assert.Equal(t, 0.5, rec.KellyFraction)
}

func TestSummarizeNoEdgeSuggestsZeroKelly(t *testing.T) {
	m := validate.EdgeMeasurement{PValue: 0.9, WilsonLower: 0.4, Edge: -0.02}
	rec := validate.Summarize(m)
	assert.Equal(t, validate.EdgeNone, rec.Strength)
	assert.Equal(t, 0.0, rec.KellyFraction)
}
