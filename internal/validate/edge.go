package validate

import (
	"math"
	"sort"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/backtest"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/stats"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// EdgeMeasurement is the subset of BinaryMetrics the edge analyzer reports
// for the overall population and for each partition.
type EdgeMeasurement struct {
	N           int
	WinRate     float64
	WilsonLower float64
	WilsonUpper float64
	PValue      float64
	Edge        float64 // EdgeOverBreakEven
	EVPerBet    money.Money
	TotalPnL    money.Money
}

func measureEdge(settlements []types.SettlementResult) EdgeMeasurement {
	m := backtest.Compute(settlements)
	return EdgeMeasurement{
		N:           m.Total,
		WinRate:     m.WinRate,
		WilsonLower: m.WilsonLower,
		WilsonUpper: m.WilsonUpper,
		PValue:      m.PValue,
		Edge:        m.EdgeOverBreakEven,
		EVPerBet:    m.EVPerBet,
		TotalPnL:    m.NetPnL,
	}
}

// Partition is one named bucket's settlements and its edge measurement.
type Partition struct {
	Label       string
	Measurement EdgeMeasurement
}

// PartitionBySignalStrength buckets settlements by the bet's
// SignalStrength against an ascending slice of thresholds, producing
// len(thresholds)+1 bands: "< t0", "[t0, t1)", ..., ">= tN".
func PartitionBySignalStrength(settlements []types.SettlementResult, thresholds []float64) []Partition {
	buckets := make([][]types.SettlementResult, len(thresholds)+1)
	for _, s := range settlements {
		idx := sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > s.Bet.SignalStrength })
		buckets[idx] = append(buckets[idx], s)
	}

	labels := make([]string, len(buckets))
	for i := range buckets {
		switch {
		case len(thresholds) == 0:
			labels[i] = "all"
		case i == 0:
			labels[i] = "below-first-threshold"
		case i == len(buckets)-1:
			labels[i] = "above-last-threshold"
		default:
			labels[i] = "mid-band"
		}
	}

	out := make([]Partition, len(buckets))
	for i, b := range buckets {
		out[i] = Partition{Label: labels[i], Measurement: measureEdge(b)}
	}
	return out
}

// PartitionByUTCHour buckets settlements by the bet timestamp's UTC hour
// of day, 0 through 23.
func PartitionByUTCHour(settlements []types.SettlementResult) map[int]EdgeMeasurement {
	buckets := make(map[int][]types.SettlementResult)
	for _, s := range settlements {
		hour := time.UnixMilli(s.Bet.Timestamp).UTC().Hour()
		buckets[hour] = append(buckets[hour], s)
	}
	out := make(map[int]EdgeMeasurement, len(buckets))
	for hour, b := range buckets {
		out[hour] = measureEdge(b)
	}
	return out
}

// PartitionByVolatilityTercile buckets settlements into Low/Medium/High by
// percentile thresholds (33/67) over a volatility series passed alongside
// settlements; volatility[i] must correspond to settlements[i].
func PartitionByVolatilityTercile(settlements []types.SettlementResult, volatility []float64) []Partition {
	if len(settlements) != len(volatility) || len(settlements) == 0 {
		return nil
	}

	sorted := append([]float64(nil), volatility...)
	sort.Float64s(sorted)
	lowCut := stats.Percentile(sorted, 1.0/3.0)
	highCut := stats.Percentile(sorted, 2.0/3.0)

	var low, medium, high []types.SettlementResult
	for i, s := range settlements {
		v := volatility[i]
		switch {
		case v <= lowCut:
			low = append(low, s)
		case v <= highCut:
			medium = append(medium, s)
		default:
			high = append(high, s)
		}
	}

	return []Partition{
		{Label: "Low", Measurement: measureEdge(low)},
		{Label: "Medium", Measurement: measureEdge(medium)},
		{Label: "High", Measurement: measureEdge(high)},
	}
}

// DecayResult is the outcome of the edge-decay regression pass over a
// rolling series of window win rates.
type DecayResult struct {
	Slope       float64
	PValue      float64
	IsDecaying  bool
	Changepoints []int // indices into the rolling series where CUSUM flags a break
}

// DefaultRollingWindowSize is the number of settlements per window in the
// edge-decay win-rate series.
const DefaultRollingWindowSize = 50

// rollingWinRates computes the win rate of each consecutive, non-overlapping
// window of size windowSize over settlements, in chronological order.
func rollingWinRates(settlements []types.SettlementResult, windowSize int) []float64 {
	if windowSize <= 0 {
		windowSize = DefaultRollingWindowSize
	}
	var rates []float64
	for start := 0; start+windowSize <= len(settlements); start += windowSize {
		window := settlements[start : start+windowSize]
		wins, decided := 0, 0
		for _, s := range window {
			switch s.Outcome {
			case types.OutcomeWin:
				wins++
				decided++
			case types.OutcomeLoss:
				decided++
			}
		}
		rate := 0.0
		if decided > 0 {
			rate = float64(wins) / float64(decided)
		}
		rates = append(rates, rate)
	}
	return rates
}

// cusum runs a two-sided CUSUM changepoint pass over series relative to its
// own mean, flagging the index at which either cumulative sum first exceeds
// threshold standard deviations of the series, then resetting both sums.
func cusum(series []float64, thresholdStdDevs float64) []int {
	if len(series) < 2 {
		return nil
	}
	mean := stats.Mean(series)
	var sumSq float64
	for _, v := range series {
		d := v - mean
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / float64(len(series)))
	if stdDev == 0 {
		return nil
	}
	threshold := thresholdStdDevs * stdDev

	var changepoints []int
	upper, lower := 0.0, 0.0
	for i, v := range series {
		d := v - mean
		upper = maxFloat(0, upper+d)
		lower = minFloat(0, lower+d)
		if upper > threshold || -lower > threshold {
			changepoints = append(changepoints, i)
			upper, lower = 0, 0
		}
	}
	return changepoints
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// DetectEdgeDecay fits a linear regression of window-index to
// window-win-rate over a rolling win-rate series and runs a CUSUM pass over
// the same series. is_decaying requires both a negative slope beyond
// -0.001 and statistical significance at alpha.
func DetectEdgeDecay(settlements []types.SettlementResult, windowSize int, alpha float64) DecayResult {
	if alpha <= 0 {
		alpha = 0.05
	}
	rates := rollingWinRates(settlements, windowSize)
	if len(rates) < 2 {
		return DecayResult{}
	}

	x := make([]float64, len(rates))
	for i := range x {
		x[i] = float64(i)
	}
	reg := stats.SimpleLinearRegression(x, rates)

	return DecayResult{
		Slope:        reg.Slope,
		PValue:       reg.PValue,
		IsDecaying:   reg.Slope < -0.001 && reg.PValue < alpha,
		Changepoints: cusum(rates, 2.0),
	}
}

// EdgeStrength classifies an EdgeMeasurement's economic significance for
// the fractional-Kelly suggestion table.
type EdgeStrength string

const (
	EdgeStrong   EdgeStrength = "Strong"
	EdgeModerate EdgeStrength = "Moderate"
	EdgeWeak     EdgeStrength = "Weak"
	EdgeNone     EdgeStrength = "None"
)

// Recommendation is the Go/No-Go output of Summarize: an edge strength
// classification and the fractional-Kelly multiple it suggests.
type Recommendation struct {
	Strength      EdgeStrength
	KellyFraction float64
}

// classifyStrength buckets a measurement's statistical significance and
// edge magnitude into Strong/Moderate/Weak/None. Strong requires both
// significance (p<0.05, Wilson lower>0.5) and a large edge (>=5 percentage
// points over break-even); Moderate requires significance with a smaller
// edge; Weak is a positive but non-significant edge; None is zero or
// negative.
func classifyStrength(m EdgeMeasurement) EdgeStrength {
	significant := m.PValue < 0.05 && m.WilsonLower > 0.5
	switch {
	case m.Edge <= 0:
		return EdgeNone
	case significant && m.Edge >= 0.05:
		return EdgeStrong
	case significant:
		return EdgeModerate
	default:
		return EdgeWeak
	}
}

// Summarize produces the Go/No-Go recommendation and fractional-Kelly
// suggestion for an overall edge measurement.
func Summarize(m EdgeMeasurement) Recommendation {
	strength := classifyStrength(m)
	fraction := 0.0
	switch strength {
	case EdgeStrong:
		fraction = 0.5
	case EdgeModerate:
		fraction = 0.25
	case EdgeWeak:
		fraction = 0.1
	}
	return Recommendation{Strength: strength, KellyFraction: fraction}
}
