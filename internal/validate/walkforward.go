package validate

import (
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/backtest"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// OverfittingRisk classifies how much a strategy's in-sample win rate
// degrades out-of-sample.
type OverfittingRisk string

const (
	RiskLow    OverfittingRisk = "Low"
	RiskMedium OverfittingRisk = "Medium"
	RiskHigh   OverfittingRisk = "High"
	RiskSevere OverfittingRisk = "Severe"
)

// classifyOverfitting buckets relative win-rate degradation
// d = (wrIS - wrOOS) / wrIS per the fixed threshold table.
func classifyOverfitting(wrIS, wrOOS float64) OverfittingRisk {
	if wrIS == 0 {
		return RiskSevere
	}
	d := (wrIS - wrOOS) / wrIS
	switch {
	case d <= 0.05:
		return RiskLow
	case d <= 0.10:
		return RiskMedium
	case d <= 0.20:
		return RiskHigh
	default:
		return RiskSevere
	}
}

// Fold is one train/test split's time boundaries, each a half-open
// interval [Start, End) in epoch milliseconds.
type Fold struct {
	TrainStart, TrainEnd int64
	TestStart, TestEnd   int64
}

// WalkForwardConfig controls fold generation and the minimum sample size
// a fold must meet on both sides to be retained.
type WalkForwardConfig struct {
	TrainWindowMs int64
	TestWindowMs  int64
	StepMs        int64
	Anchored      bool
	MinSamples    int
}

// GenerateFolds enumerates non-overlapping test periods covering [start,
// end). With Anchored, the train window's start is fixed at start and its
// end expands each fold; otherwise the train window rolls forward by
// StepMs each fold, keeping a fixed TrainWindowMs width.
func (c WalkForwardConfig) GenerateFolds(start, end int64) []Fold {
	var folds []Fold
	trainStart := start
	trainEnd := start + c.TrainWindowMs

	for trainEnd+c.TestWindowMs <= end {
		testStart := trainEnd
		testEnd := testStart + c.TestWindowMs

		folds = append(folds, Fold{
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
		})

		if c.Anchored {
			trainEnd += c.StepMs
		} else {
			trainStart += c.StepMs
			trainEnd += c.StepMs
		}
	}
	return folds
}

// FoldResult is one retained fold's train (in-sample) and test
// (out-of-sample) metrics. A fold where either side fails MinSamples gets
// no FoldResult; it is only counted in WalkForwardResult.DroppedFolds.
type FoldResult struct {
	Fold          Fold
	TrainMetrics  backtest.BinaryMetrics
	TestMetrics   backtest.BinaryMetrics
	Risk          OverfittingRisk
	Passes        bool
}

// WalkForwardResult aggregates every retained fold plus the pooled
// in-sample/out-of-sample settlement sets and their combined metrics.
type WalkForwardResult struct {
	Folds          []FoldResult
	DroppedFolds   int
	InSample       []types.SettlementResult
	OutOfSample    []types.SettlementResult
	InSampleMetrics  backtest.BinaryMetrics
	OutOfSampleMetrics backtest.BinaryMetrics
}

func inInterval(t, start, end int64) bool {
	return t >= start && t < end
}

func filterByInterval(settlements []types.SettlementResult, start, end int64) []types.SettlementResult {
	var out []types.SettlementResult
	for _, s := range settlements {
		if inInterval(s.Bet.Timestamp, start, end) {
			out = append(out, s)
		}
	}
	return out
}

// RunWalkForward splits settlements into folds per cfg, computing train and
// test BinaryMetrics for each and dropping folds that don't meet
// cfg.MinSamples on both sides. It returns every retained fold's metrics
// and overfitting classification, plus pooled in-sample/out-of-sample
// metrics over the union of all retained folds' settlements.
func RunWalkForward(settlements []types.SettlementResult, cfg WalkForwardConfig, start, end int64) WalkForwardResult {
	folds := cfg.GenerateFolds(start, end)

	var results []FoldResult
	var allTrain, allTest []types.SettlementResult
	dropped := 0

	for _, f := range folds {
		train := filterByInterval(settlements, f.TrainStart, f.TrainEnd)
		test := filterByInterval(settlements, f.TestStart, f.TestEnd)
		if len(train) < cfg.MinSamples || len(test) < cfg.MinSamples {
			dropped++
			continue
		}

		trainMetrics := backtest.Compute(train)
		testMetrics := backtest.Compute(test)
		risk := classifyOverfitting(trainMetrics.WinRate, testMetrics.WinRate)
		passes := testMetrics.PValue < 0.05 && testMetrics.WilsonLower > 0.5 &&
			(risk == RiskLow || risk == RiskMedium)

		results = append(results, FoldResult{
			Fold:         f,
			TrainMetrics: trainMetrics,
			TestMetrics:  testMetrics,
			Risk:         risk,
			Passes:       passes,
		})
		allTrain = append(allTrain, train...)
		allTest = append(allTest, test...)
	}

	return WalkForwardResult{
		Folds:              results,
		DroppedFolds:       dropped,
		InSample:           allTrain,
		OutOfSample:        allTest,
		InSampleMetrics:    backtest.Compute(allTrain),
		OutOfSampleMetrics: backtest.Compute(allTest),
	}
}
