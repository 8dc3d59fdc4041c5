package validate

import (
	"sort"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// VolatilityRegime classifies a settlement's volatility tercile.
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "Low"
	VolatilityMedium VolatilityRegime = "Medium"
	VolatilityHigh   VolatilityRegime = "High"
)

// TrendRegime classifies a settlement's realized price move.
type TrendRegime string

const (
	TrendBullish TrendRegime = "Bullish"
	TrendBearish TrendRegime = "Bearish"
	TrendRanging TrendRegime = "Ranging"
)

// TimePeriod buckets a settlement's UTC hour of day into a 7-period
// trading-session calendar.
type TimePeriod string

const (
	PeriodAsiaOpen     TimePeriod = "AsiaOpen"
	PeriodAsiaSession  TimePeriod = "AsiaSession"
	PeriodEuropeOpen   TimePeriod = "EuropeOpen"
	PeriodEuropeSession TimePeriod = "EuropeSession"
	PeriodUSOpen       TimePeriod = "USOpen"
	PeriodUSSession    TimePeriod = "USSession"
	PeriodUSClose      TimePeriod = "USClose"
)

// timePeriodForHour maps a UTC hour (0-23) to its trading-session bucket.
func timePeriodForHour(hour int) TimePeriod {
	switch {
	case hour <= 3:
		return PeriodAsiaOpen
	case hour <= 7:
		return PeriodAsiaSession
	case hour <= 11:
		return PeriodEuropeOpen
	case hour <= 13:
		return PeriodEuropeSession
	case hour <= 17:
		return PeriodUSOpen
	case hour <= 21:
		return PeriodUSSession
	default:
		return PeriodUSClose
	}
}

// RegimeConfig controls the volatility tercile cut points and the trend
// threshold against price_return.
type RegimeConfig struct {
	VolatilityLowPercentile  float64 // default 1/3
	VolatilityHighPercentile float64 // default 2/3
	TrendThreshold           float64 // default 0.001
}

func (c *RegimeConfig) setDefaults() {
	if c.VolatilityLowPercentile <= 0 {
		c.VolatilityLowPercentile = 1.0 / 3.0
	}
	if c.VolatilityHighPercentile <= 0 {
		c.VolatilityHighPercentile = 2.0 / 3.0
	}
	if c.TrendThreshold <= 0 {
		c.TrendThreshold = 0.001
	}
}

// Classification is one settlement's assigned regime buckets.
type Classification struct {
	Volatility VolatilityRegime
	Trend      TrendRegime
	TimePeriod TimePeriod
}

// ClassifyTrend buckets a settlement's PriceReturn against threshold.
func ClassifyTrend(priceReturn, threshold float64) TrendRegime {
	switch {
	case priceReturn > threshold:
		return TrendBullish
	case priceReturn < -threshold:
		return TrendBearish
	default:
		return TrendRanging
	}
}

// ClassifySettlements classifies every settlement into its volatility,
// trend, and time-of-day regime. volatility[i] must correspond to
// settlements[i], matching the edge analyzer's volatility-series contract.
func ClassifySettlements(settlements []types.SettlementResult, volatility []float64, cfg RegimeConfig) []Classification {
	cfg.setDefaults()
	if len(volatility) != len(settlements) {
		volatility = make([]float64, len(settlements))
	}

	sorted := append([]float64(nil), volatility...)
	sort.Float64s(sorted)
	lowCut := percentileSorted(sorted, cfg.VolatilityLowPercentile)
	highCut := percentileSorted(sorted, cfg.VolatilityHighPercentile)

	out := make([]Classification, len(settlements))
	for i, s := range settlements {
		var vol VolatilityRegime
		switch {
		case volatility[i] <= lowCut:
			vol = VolatilityLow
		case volatility[i] <= highCut:
			vol = VolatilityMedium
		default:
			vol = VolatilityHigh
		}

		hour := time.UnixMilli(s.Bet.Timestamp).UTC().Hour()
		out[i] = Classification{
			Volatility: vol,
			Trend:      ClassifyTrend(s.PriceReturn(), cfg.TrendThreshold),
			TimePeriod: timePeriodForHour(hour),
		}
	}
	return out
}

// RegimeSummary aggregates a set of settlements that share one or more
// regime bucket assignments.
type RegimeSummary struct {
	Count   int
	Measurement EdgeMeasurement
}

// AggregateByRegime buckets settlements by their classification and, for
// each combination observed, returns a measurement over that bucket. The
// key is a "volatility|trend" composite label per §4.18's volatility x
// trend cross-tabulation; callers wanting single-dimension buckets can key
// their own map off the Classification slice directly.
func AggregateByRegime(settlements []types.SettlementResult, classifications []Classification) map[string]RegimeSummary {
	buckets := make(map[string][]types.SettlementResult)
	for i, s := range settlements {
		if i >= len(classifications) {
			break
		}
		key := string(classifications[i].Volatility) + "|" + string(classifications[i].Trend)
		buckets[key] = append(buckets[key], s)
	}

	out := make(map[string]RegimeSummary, len(buckets))
	for key, b := range buckets {
		out[key] = RegimeSummary{Count: len(b), Measurement: measureEdge(b)}
	}
	return out
}

// CountTransitions counts how many times consecutive settlements (in the
// order given) fall into a different volatility x trend regime than the
// one before them.
func CountTransitions(classifications []Classification) int {
	transitions := 0
	for i := 1; i < len(classifications); i++ {
		prev, cur := classifications[i-1], classifications[i]
		if prev.Volatility != cur.Volatility || prev.Trend != cur.Trend {
			transitions++
		}
	}
	return transitions
}
