// Package types defines the shared vocabulary used across every layer of
// the trading engine: coins, sides, order-book wire shapes, the bet and
// settlement records, and the opportunity/position structs the detectors
// and executors pass between each other. Its only internal dependency is
// internal/money, so it can be imported everywhere else.
package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
)

// ————————————————————————————————————————————————————————————————————
// Coins and sides
// ————————————————————————————————————————————————————————————————————

// Coin is the closed set of crypto assets this engine trades 15-minute
// Up/Down contracts on.
type Coin string

const (
	BTC Coin = "BTC"
	ETH Coin = "ETH"
	SOL Coin = "SOL"
	XRP Coin = "XRP"
)

// AllCoins enumerates every supported coin, in canonical order.
var AllCoins = []Coin{BTC, ETH, SOL, XRP}

// SlugPrefix returns the market-question slug prefix used to identify
// which coin a Gamma market is about (e.g. "bitcoin", matching slugs such
// as "bitcoin-up-or-down-...").
func (c Coin) SlugPrefix() string {
	switch c {
	case BTC:
		return "bitcoin"
	case ETH:
		return "ethereum"
	case SOL:
		return "solana"
	case XRP:
		return "xrp"
	default:
		return ""
	}
}

// BinanceSymbol returns the Binance spot trading pair for the coin.
func (c Coin) BinanceSymbol() string {
	switch c {
	case BTC:
		return "BTCUSDT"
	case ETH:
		return "ETHUSDT"
	case SOL:
		return "SOLUSDT"
	case XRP:
		return "XRPUSDT"
	default:
		return ""
	}
}

// Direction is which side of a binary market a bet or signal takes.
type Direction string

const (
	DirectionYes Direction = "Yes"
	DirectionNo  Direction = "No"
)

// Opposite returns the other binary direction.
func (d Direction) Opposite() Direction {
	if d == DirectionYes {
		return DirectionNo
	}
	return DirectionYes
}

// Side is the exchange order side.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ————————————————————————————————————————————————————————————————————
// Bets and settlements
// ————————————————————————————————————————————————————————————————————

// Outcome is the settled result of a single BinaryBet.
type Outcome string

const (
	OutcomeWin  Outcome = "Win"
	OutcomeLoss Outcome = "Loss"
	OutcomePush Outcome = "Push"
)

// BinaryBet is an immutable record of a single directional wager on one
// side of a 15-minute binary market.
type BinaryBet struct {
	ID              uuid.UUID
	Timestamp       int64 // ms since epoch
	MarketID        string
	Direction       Direction
	Stake           money.Money
	Price           money.Money // in (0, 1)
	SignalStrength  float64     // in [0, 1]
	SignalMetadata  map[string]float64
}

// NewBinaryBet constructs an immutable BinaryBet with a fresh ID.
func NewBinaryBet(marketID string, direction Direction, stake, price money.Money, strength float64, meta map[string]float64) BinaryBet {
	return BinaryBet{
		ID:             uuid.New(),
		Timestamp:      time.Now().UnixMilli(),
		MarketID:       marketID,
		Direction:      direction,
		Stake:          stake,
		Price:          price,
		SignalStrength: strength,
		SignalMetadata: meta,
	}
}

// SettlementResult is the append-only record of a BinaryBet's outcome.
type SettlementResult struct {
	Bet            BinaryBet
	SettlementTime int64
	EndPrice       float64
	StartPrice     float64
	Outcome        Outcome
	Fees           money.Money
}

// GrossPnL computes profit before fees, per the derivation rules in §3:
// Win: stake/price - stake; Loss: -stake; Push: 0.
func (s SettlementResult) GrossPnL() money.Money {
	switch s.Outcome {
	case OutcomeWin:
		shares, err := s.Bet.Stake.Div(s.Bet.Price)
		if err != nil {
			return money.Zero
		}
		return shares.Sub(s.Bet.Stake)
	case OutcomeLoss:
		return s.Bet.Stake.Neg()
	default: // Push
		return money.Zero
	}
}

// NetPnL is GrossPnL minus fees.
func (s SettlementResult) NetPnL() money.Money {
	return s.GrossPnL().Sub(s.Fees)
}

// PriceReturn is (end-start)/start, 0 when start is 0.
func (s SettlementResult) PriceReturn() float64 {
	if s.StartPrice == 0 {
		return 0
	}
	return (s.EndPrice - s.StartPrice) / s.StartPrice
}

// ————————————————————————————————————————————————————————————————————
// Arbitrage & gabagool
// ————————————————————————————————————————————————————————————————————

// ArbitrageOpportunity is a detected simultaneous-buy opportunity on a
// single binary market: buying both YES and NO below $1 total locks a
// guaranteed profit at settlement.
type ArbitrageOpportunity struct {
	MarketID        string
	YesAsk          money.Money
	NoAsk           money.Money
	PairCost        money.Money
	Size            money.Money
	ExpectedPayout  money.Money
	ExpectedProfit  money.Money
	DetectedAt      int64
}

// GabagoolState is the gabagool detector's finite state.
type GabagoolState string

const (
	GabagoolNoPosition GabagoolState = "NoPosition"
	GabagoolEntry      GabagoolState = "Entry"
	GabagoolHedged     GabagoolState = "Hedged"
	GabagoolScratched  GabagoolState = "Scratched"
)

// Confidence buckets a gabagool signal's quality.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// OpenPosition is the at-most-one-per-detector open position the gabagool
// state machine tracks within a single 15-minute window.
type OpenPosition struct {
	Direction     Direction
	EntryPrice    money.Money
	Quantity      money.Money
	EntryTimeMs   int64
	WindowStartMs int64
}

// CrossMarketOpportunity is the persisted row for a settled (or pending)
// dual-leg or cross-coin opportunity.
type CrossMarketOpportunity struct {
	ID                   uuid.UUID
	Leg1TokenID          string
	Leg2TokenID          string
	Leg1Coin             Coin
	Leg2Coin             Coin
	Leg1Direction        Direction
	Leg2Direction        Direction
	ExpectedLeg1Outcome  Outcome
	ExpectedLeg2Outcome  Outcome
	RealizedLeg1Outcome  *Outcome
	RealizedLeg2Outcome  *Outcome
	TotalCost            money.Money
	RealizedPnL          *money.Money
	DetectedAt           int64
	WindowEndMs          int64
	SettledAt            *int64
	CorrelationCorrect   *bool
	Expired              bool
	Approximate          bool
}
