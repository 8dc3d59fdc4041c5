package backtest

import (
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/stats"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// BinaryMetrics is the full set of statistics §4.13 computes over a slice
// of settlements, in one pass.
type BinaryMetrics struct {
	Wins, Losses, Pushes, Total int

	WinRate              float64
	WilsonLower          float64
	WilsonUpper          float64
	PValue               float64

	TotalStake money.Money
	GrossPnL   money.Money
	Fees       money.Money
	NetPnL     money.Money

	EVPerBet money.Money
	ROI      float64

	MaxDrawdown          money.Money
	MaxConsecutiveLosses int

	BreakEvenWinRate   float64
	EdgeOverBreakEven  float64
	HasSignificantEdge bool
}

// Empty returns the zero-settlement metrics: p=1, not significant, every
// other field at its zero value.
func Empty() BinaryMetrics {
	return BinaryMetrics{PValue: 1.0}
}

// Compute aggregates settlements in a single pass: running equity for max
// drawdown, a running streak counter for max consecutive losses, and
// running sums for every other statistic, closing with the Wilson interval
// and binomial test over the accumulated win/loss counts.
func Compute(settlements []types.SettlementResult) BinaryMetrics {
	if len(settlements) == 0 {
		return Empty()
	}

	var (
		wins, losses, pushes int
		totalStake           = money.Zero
		grossPnL             = money.Zero
		fees                 = money.Zero
		priceSum             float64
		feeRateSum           float64
		nonPushCount         int

		equity        = money.Zero
		peak          = money.Zero
		maxDrawdown   = money.Zero
		consecLosses  int
		maxConsecLoss int
	)

	for _, s := range settlements {
		totalStake = totalStake.Add(s.Bet.Stake)
		gross := s.GrossPnL()
		net := s.NetPnL()
		grossPnL = grossPnL.Add(gross)
		fees = fees.Add(s.Fees)

		switch s.Outcome {
		case types.OutcomeWin:
			wins++
			consecLosses = 0
		case types.OutcomeLoss:
			losses++
			consecLosses++
			if consecLosses > maxConsecLoss {
				maxConsecLoss = consecLosses
			}
		case types.OutcomePush:
			pushes++
			consecLosses = 0
		}

		if s.Outcome != types.OutcomePush {
			nonPushCount++
			priceSum += s.Bet.Price.Float64()
			if !s.Bet.Stake.IsZero() {
				feeRate, _ := s.Fees.Div(s.Bet.Stake)
				feeRateSum += feeRate.Float64()
			}
		}

		equity = equity.Add(net)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		drawdown := peak.Sub(equity)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}

	netPnL := grossPnL.Sub(fees)
	total := len(settlements)

	decided := wins + losses
	winRate := 0.0
	if decided > 0 {
		winRate = float64(wins) / float64(decided)
	}
	wilsonLower, wilsonUpper := stats.WilsonInterval(wins, decided)
	pValue := stats.BinomialTest(wins, decided, 0.5)

	roi := 0.0
	if !totalStake.IsZero() {
		roi = netPnL.Float64() / totalStake.Float64()
	}
	evPerBet := money.Zero
	if total > 0 {
		evPerBet = netPnL.MulFloat(1.0 / float64(total))
	}

	breakEven := 0.0
	if nonPushCount > 0 {
		avgPrice := priceSum / float64(nonPushCount)
		avgFeeRate := feeRateSum / float64(nonPushCount)
		breakEven = avgPrice * (1 + avgFeeRate)
		if breakEven > 1 {
			breakEven = 1
		}
	}
	edge := winRate - breakEven

	hasSignificantEdge := pValue < 0.05 && wilsonLower > 0.5 && decided >= 100

	return BinaryMetrics{
		Wins:                 wins,
		Losses:               losses,
		Pushes:               pushes,
		Total:                total,
		WinRate:              winRate,
		WilsonLower:          wilsonLower,
		WilsonUpper:          wilsonUpper,
		PValue:               pValue,
		TotalStake:           totalStake,
		GrossPnL:             grossPnL,
		Fees:                 fees,
		NetPnL:               netPnL,
		EVPerBet:             evPerBet,
		ROI:                  roi,
		MaxDrawdown:          maxDrawdown,
		MaxConsecutiveLosses: maxConsecLoss,
		BreakEvenWinRate:     breakEven,
		EdgeOverBreakEven:    edge,
		HasSignificantEdge:   hasSignificantEdge,
	}
}
