package validate

import (
	"math"
	"math/rand"
	"sort"
)

// SizingPolicy selects how MonteCarloSimulate sizes each simulated bet.
type SizingPolicy int

const (
	SizingFixed SizingPolicy = iota
	SizingFractionOfBankroll
	SizingFractionalKelly
)

// MonteCarloConfig parameterizes one simulation run. Price and WinProb
// describe the bet being repeated n_bets times per path; a real caller
// typically derives these from a backtest's average entry price and
// observed win rate.
type MonteCarloConfig struct {
	NumSims  int
	NumBets  int
	Initial  float64
	Price    float64 // in (0, 1)
	WinProb  float64

	Policy           SizingPolicy
	FixedStake       float64 // SizingFixed
	BankrollFraction float64 // SizingFractionOfBankroll
	KellyFraction    float64 // SizingFractionalKelly: multiple of full Kelly
	MinEdge          float64 // SizingFractionalKelly: skip the bet if edge below this

	RuinThreshold float64 // fraction of Initial; default 0 (equity <= 0)
	Rand          *rand.Rand
}

func (c *MonteCarloConfig) setDefaults() {
	if c.NumSims <= 0 {
		c.NumSims = 1000
	}
	if c.NumBets <= 0 {
		c.NumBets = 100
	}
	if c.RuinThreshold <= 0 {
		c.RuinThreshold = 0
	}
	if c.KellyFraction <= 0 {
		c.KellyFraction = 1.0
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}
}

// MonteCarloResult summarizes NumSims independent equity trajectories.
type MonteCarloResult struct {
	ProbRuin    float64
	ProbProfit  float64
	ProbDouble  float64
	MeanFinal   float64
	StdDevFinal float64
	Percentiles map[int]float64 // keys: 5, 25, 50, 75, 95
	IsFavorable bool
}

// kellyStake returns the Kelly-optimal stake for a binary bet at price with
// win probability p, clamped to [0, bankroll]. Returns (0, false) when the
// edge is below minEdge — the caller should skip the bet entirely.
func kellyStake(bankroll, price, p, fraction, minEdge float64) (float64, bool) {
	if price <= 0 || price >= 1 {
		return 0, false
	}
	b := (1 - price) / price
	edge := p*(b+1) - 1 // numerator of the Kelly formula; also the per-$1 edge
	if edge < minEdge {
		return 0, false
	}
	fStar := edge / b
	stake := fraction * fStar * bankroll
	if stake < 0 {
		stake = 0
	}
	if stake > bankroll {
		stake = bankroll
	}
	return stake, true
}

// MonteCarloSimulate runs NumSims independent paths of NumBets sequential
// bets each, applying the configured sizing policy at every step, and
// aggregates ruin/profit/doubling probabilities and the final-equity
// distribution.
func MonteCarloSimulate(cfg MonteCarloConfig) MonteCarloResult {
	cfg.setDefaults()

	finals := make([]float64, cfg.NumSims)
	ruinFloor := cfg.Initial * cfg.RuinThreshold
	ruins, profits, doubles := 0, 0, 0

	for sim := 0; sim < cfg.NumSims; sim++ {
		equity := cfg.Initial
		ruined := false

		for bet := 0; bet < cfg.NumBets; bet++ {
			if ruined {
				break
			}

			var stake float64
			switch cfg.Policy {
			case SizingFractionOfBankroll:
				stake = cfg.BankrollFraction * equity
			case SizingFractionalKelly:
				s, ok := kellyStake(equity, cfg.Price, cfg.WinProb, cfg.KellyFraction, cfg.MinEdge)
				if !ok {
					continue
				}
				stake = s
			default:
				stake = cfg.FixedStake
			}
			if stake <= 0 {
				continue
			}

			if cfg.Rand.Float64() < cfg.WinProb {
				equity += stake/cfg.Price - stake
			} else {
				equity -= stake
			}

			if equity <= ruinFloor {
				ruined = true
			}
		}

		if ruined {
			ruins++
		}
		if equity > cfg.Initial {
			profits++
		}
		if equity >= 2*cfg.Initial {
			doubles++
		}
		finals[sim] = equity
	}

	n := float64(cfg.NumSims)
	mean := 0.0
	for _, v := range finals {
		mean += v
	}
	mean /= n
	var sumSq float64
	for _, v := range finals {
		d := v - mean
		sumSq += d * d
	}
	stdDev := 0.0
	if cfg.NumSims > 1 {
		stdDev = math.Sqrt(sumSq / (n - 1))
	}

	sorted := append([]float64(nil), finals...)
	sort.Float64s(sorted)
	percentiles := map[int]float64{
		5:  percentileSorted(sorted, 0.05),
		25: percentileSorted(sorted, 0.25),
		50: percentileSorted(sorted, 0.50),
		75: percentileSorted(sorted, 0.75),
		95: percentileSorted(sorted, 0.95),
	}

	probRuin := float64(ruins) / n
	probProfit := float64(profits) / n
	probDouble := float64(doubles) / n

	return MonteCarloResult{
		ProbRuin:    probRuin,
		ProbProfit:  probProfit,
		ProbDouble:  probDouble,
		MeanFinal:   mean,
		StdDevFinal: stdDev,
		Percentiles: percentiles,
		IsFavorable: probProfit > 0.5 && probRuin < 0.1,
	}
}
