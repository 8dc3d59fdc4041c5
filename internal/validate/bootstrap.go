// Package validate implements the out-of-sample statistical validation
// layer: percentile bootstrap, Monte Carlo ruin simulation, walk-forward
// optimization, edge analysis, and regime classification, all built
// directly from spec formulas over internal/stats since no corpus repo
// implements resampling or simulation validation for a trading signal.
package validate

import (
	"math"
	"math/rand"
	"sort"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// BootstrapResult is one statistic's percentile-bootstrap estimate: the
// point estimate on the original sample, the resample mean (for bias), the
// standard error across resamples, and the percentile confidence interval.
type BootstrapResult struct {
	Estimate float64
	Mean     float64
	SE       float64
	Lower    float64
	Upper    float64
	Bias     float64
}

// BootstrapConfig controls resample count, confidence level, and the
// random source. Rand must be an explicit *rand.Rand, never the package
// global, so a run is reproducible given the same seed.
type BootstrapConfig struct {
	Iterations int
	Alpha      float64 // e.g. 0.05 for a 95% CI
	Rand       *rand.Rand
}

func (c *BootstrapConfig) setDefaults() {
	if c.Iterations <= 0 {
		c.Iterations = 10_000
	}
	if c.Alpha <= 0 {
		c.Alpha = 0.05
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}
}

// BootstrapStatistic resamples sample with replacement Iterations times,
// applies f to each resample, and returns the percentile confidence
// interval of the resulting statistic distribution alongside the point
// estimate computed on the original sample. The confidence interval is
// taken directly from the resample percentiles and is not guaranteed to
// contain the point estimate for skewed statistics such as max drawdown.
func BootstrapStatistic(sample []float64, f func([]float64) float64, cfg BootstrapConfig) BootstrapResult {
	cfg.setDefaults()

	estimate := f(sample)
	if len(sample) == 0 {
		return BootstrapResult{Estimate: estimate}
	}

	replicates := make([]float64, cfg.Iterations)
	resample := make([]float64, len(sample))
	sum := 0.0
	for i := 0; i < cfg.Iterations; i++ {
		for j := range resample {
			resample[j] = sample[cfg.Rand.Intn(len(sample))]
		}
		v := f(resample)
		replicates[i] = v
		sum += v
	}

	sort.Float64s(replicates)
	mean := sum / float64(cfg.Iterations)
	var sumSq float64
	for _, v := range replicates {
		d := v - mean
		sumSq += d * d
	}
	se := 0.0
	if cfg.Iterations > 1 {
		se = math.Sqrt(sumSq / float64(cfg.Iterations-1))
	}

	lower := percentileSorted(replicates, cfg.Alpha/2)
	upper := percentileSorted(replicates, 1-cfg.Alpha/2)

	return BootstrapResult{
		Estimate: estimate,
		Mean:     mean,
		SE:       se,
		Lower:    lower,
		Upper:    upper,
		Bias:     mean - estimate,
	}
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(p * float64(n-1))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// winRateStat is the named statistic for BootstrapWinRate: the fraction of
// decided (non-push) settlements, encoded in sample as 1=win, 0=loss.
func winRateStat(sample []float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

func meanStat(sample []float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// BootstrapWinRate bootstraps the win rate over decided settlements (pushes
// excluded, matching BinaryMetrics.WinRate's denominator).
func BootstrapWinRate(settlements []types.SettlementResult, cfg BootstrapConfig) BootstrapResult {
	sample := make([]float64, 0, len(settlements))
	for _, s := range settlements {
		switch s.Outcome {
		case types.OutcomeWin:
			sample = append(sample, 1)
		case types.OutcomeLoss:
			sample = append(sample, 0)
		}
	}
	return BootstrapStatistic(sample, winRateStat, cfg)
}

// BootstrapEV bootstraps the mean net P&L per bet across all settlements
// (pushes included, contributing 0).
func BootstrapEV(settlements []types.SettlementResult, cfg BootstrapConfig) BootstrapResult {
	sample := make([]float64, len(settlements))
	for i, s := range settlements {
		sample[i] = s.NetPnL().Float64()
	}
	return BootstrapStatistic(sample, meanStat, cfg)
}

// BootstrapROI bootstraps per-bet ROI (net P&L / stake), skipping any
// settlement with a zero stake.
func BootstrapROI(settlements []types.SettlementResult, cfg BootstrapConfig) BootstrapResult {
	sample := make([]float64, 0, len(settlements))
	for _, s := range settlements {
		if s.Bet.Stake.IsZero() {
			continue
		}
		roi, err := s.NetPnL().Div(s.Bet.Stake)
		if err != nil {
			continue
		}
		sample = append(sample, roi.Float64())
	}
	return BootstrapStatistic(sample, meanStat, cfg)
}

// BootstrapMaxDrawdown bootstraps the maximum drawdown statistic. Each
// resample reorders bets, so the resulting equity path — and therefore its
// drawdown — depends on resample order, not just which bets were drawn; the
// CI is not guaranteed to bracket the original-order point estimate.
func BootstrapMaxDrawdown(settlements []types.SettlementResult, cfg BootstrapConfig) BootstrapResult {
	sample := make([]float64, len(settlements))
	for i, s := range settlements {
		sample[i] = s.NetPnL().Float64()
	}
	return BootstrapStatistic(sample, maxDrawdownStat, cfg)
}

func maxDrawdownStat(sample []float64) float64 {
	equity, peak, maxDD := 0.0, 0.0, 0.0
	for _, v := range sample {
		equity += v
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
