// Package settlement resolves pending cross-market opportunities to a
// final win/loss/double result via a three-step fallback chain, and
// tracks cross-coin directional correlation across resolved pairs. It is
// grounded on the teacher's periodic-task + repository-persistence shape
// (seen in its inventory reconciliation loop), generalized from position
// bookkeeping to settlement resolution.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/dataapi"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/klines"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// DefaultPollInterval is how often the resolver sweeps pending
// opportunities for resolution.
const DefaultPollInterval = 30 * time.Second

// DefaultSettlementDelay is how long the resolver waits past a window's
// close before attempting to resolve it, giving Polymarket's own
// resolution process time to settle the market.
const DefaultSettlementDelay = 120 * time.Second

// DefaultMaxPendingAge is how long an unresolved opportunity is kept
// pending before being marked Expired.
const DefaultMaxPendingAge = time.Hour

// Result is the dual-leg settlement outcome from (leg1Won, leg2Won).
type Result string

const (
	ResultDoubleWin Result = "DoubleWin"
	ResultWin       Result = "Win"
	ResultLose      Result = "Lose"
)

func resultOf(leg1Won, leg2Won bool) Result {
	switch {
	case leg1Won && leg2Won:
		return ResultDoubleWin
	case leg1Won != leg2Won:
		return ResultWin
	default:
		return ResultLose
	}
}

// Payout returns the fixed payout per $1 notional for a Result: 2 on a
// double win, 1 on a single win, 0 on a total loss.
func (r Result) Payout() float64 {
	switch r {
	case ResultDoubleWin:
		return 2
	case ResultWin:
		return 1
	default:
		return 0
	}
}

// CLOBPriceClient fetches the last/mid price for a single outcome token
// from the CLOB, the resolution chain's second step.
type CLOBPriceClient interface {
	TokenPrice(ctx context.Context, tokenID string) (price float64, ok bool, err error)
}

// Repository persists cross-market opportunities across resolver sweeps.
type Repository interface {
	PendingOpportunities(ctx context.Context, now int64) ([]types.CrossMarketOpportunity, error)
	SaveOpportunity(ctx context.Context, opp types.CrossMarketOpportunity) error
}

// Config controls the resolver's polling cadence and fee model.
type Config struct {
	PollInterval     time.Duration
	SettlementDelay  time.Duration
	MaxPendingAge    time.Duration
	FeeRate          float64
	Wallet           string
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SettlementDelay <= 0 {
		c.SettlementDelay = DefaultSettlementDelay
	}
	if c.MaxPendingAge <= 0 {
		c.MaxPendingAge = DefaultMaxPendingAge
	}
}

// Resolver runs the periodic settlement sweep: wallet positions first,
// CLOB token prices second, exchange klines last, per §4.19's resolution
// chain.
type Resolver struct {
	cfg         Config
	wallet      dataapi.Client
	clob        CLOBPriceClient
	klines      klines.Client
	repo        Repository
	correlation *CorrelationTracker
	now         func() int64
	logger      *slog.Logger
}

// NewResolver builds a resolver. now is injected for deterministic tests.
func NewResolver(cfg Config, wallet dataapi.Client, clob CLOBPriceClient, kl klines.Client, repo Repository, correlation *CorrelationTracker, now func() int64, logger *slog.Logger) *Resolver {
	cfg.setDefaults()
	return &Resolver{
		cfg:         cfg,
		wallet:      wallet,
		clob:        clob,
		klines:      kl,
		repo:        repo,
		correlation: correlation,
		now:         now,
		logger:      logger.With("component", "settlement_resolver"),
	}
}

// Run loops Sweep at cfg.PollInterval until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("settlement sweep failed", "error", err)
			}
		}
	}
}

// Sweep resolves every opportunity whose window closed more than
// SettlementDelay ago, persisting each resolution and expiring anything
// older than MaxPendingAge that still could not be resolved.
func (r *Resolver) Sweep(ctx context.Context) error {
	now := r.now()
	pending, err := r.repo.PendingOpportunities(ctx, now)
	if err != nil {
		return err
	}

	for _, opp := range pending {
		if now-opp.WindowEndMs < r.cfg.SettlementDelay.Milliseconds() {
			continue
		}

		resolved, err := r.resolveOne(ctx, opp, now)
		if err != nil {
			r.logger.Debug("opportunity not yet resolvable", "id", opp.ID, "error", err)
			if now-opp.DetectedAt > r.cfg.MaxPendingAge.Milliseconds() {
				opp.Expired = true
				if saveErr := r.repo.SaveOpportunity(ctx, opp); saveErr != nil {
					r.logger.Error("save expired opportunity failed", "id", opp.ID, "error", saveErr)
				}
			}
			continue
		}

		if err := r.repo.SaveOpportunity(ctx, resolved); err != nil {
			r.logger.Error("save resolved opportunity failed", "id", resolved.ID, "error", err)
		}
	}
	return nil
}

// resolveOne tries the fallback chain and, on success, computes the
// realized outcomes, P&L, and correlation observation for opp.
func (r *Resolver) resolveOne(ctx context.Context, opp types.CrossMarketOpportunity, now int64) (types.CrossMarketOpportunity, error) {
	leg1Won, leg2Won, approximate, err := r.resolveLegs(ctx, opp)
	if err != nil {
		return opp, err
	}

	result := resultOf(leg1Won, leg2Won)
	payout := result.Payout()
	fees := payout * r.cfg.FeeRate
	actualPnL := money.New(payout - fees - opp.TotalCost.Float64())

	outcome1 := types.OutcomeLoss
	if leg1Won {
		outcome1 = types.OutcomeWin
	}
	outcome2 := types.OutcomeLoss
	if leg2Won {
		outcome2 = types.OutcomeWin
	}

	opp.RealizedLeg1Outcome = &outcome1
	opp.RealizedLeg2Outcome = &outcome2
	opp.RealizedPnL = &actualPnL
	opp.SettledAt = &now
	opp.Approximate = approximate

	if opp.Leg1Coin != opp.Leg2Coin && opp.Leg1Coin != "" && opp.Leg2Coin != "" {
		correct := outcome1 == outcome2
		opp.CorrelationCorrect = &correct
		if r.correlation != nil {
			r.correlation.Observe(opp.Leg1Coin, opp.Leg2Coin, correct)
		}
	}

	return opp, nil
}

// resolveLegs tries wallet positions, then CLOB prices, then klines, for
// both legs of opp, returning the first step that resolves both legs.
func (r *Resolver) resolveLegs(ctx context.Context, opp types.CrossMarketOpportunity) (leg1Won, leg2Won, approximate bool, err error) {
	if r.wallet != nil && r.cfg.Wallet != "" {
		positions, werr := r.wallet.Positions(ctx, r.cfg.Wallet, []string{opp.Leg1TokenID, opp.Leg2TokenID})
		if werr == nil {
			byToken := make(map[string]dataapi.Position, len(positions))
			for _, p := range positions {
				byToken[p.TokenID] = p
			}
			p1, ok1 := byToken[opp.Leg1TokenID]
			p2, ok2 := byToken[opp.Leg2TokenID]
			if ok1 && ok2 && p1.Resolved() && p2.Resolved() {
				return p1.Won(), p2.Won(), false, nil
			}
		}
	}

	if r.clob != nil {
		price1, ok1, cerr := r.clob.TokenPrice(ctx, opp.Leg1TokenID)
		price2, ok2, cerr2 := r.clob.TokenPrice(ctx, opp.Leg2TokenID)
		if cerr == nil && cerr2 == nil && ok1 && ok2 {
			return price1 >= 0.95, price2 >= 0.95, false, nil
		}
	}

	if r.klines != nil && opp.Leg1Coin != "" && opp.Leg2Coin != "" {
		windowMs := opp.WindowEndMs - opp.DetectedAt
		if windowMs <= 0 {
			windowMs = 900_000
		}
		c1, kerr1 := r.klines.Candle(ctx, opp.Leg1Coin, opp.WindowEndMs-windowMs, windowMs)
		c2, kerr2 := r.klines.Candle(ctx, opp.Leg2Coin, opp.WindowEndMs-windowMs, windowMs)
		if kerr1 == nil && kerr2 == nil {
			leg1Won = legWonByCandle(opp.Leg1Direction, c1)
			leg2Won = legWonByCandle(opp.Leg2Direction, c2)
			return leg1Won, leg2Won, true, nil
		}
		if kerr1 != nil {
			err = kerr1
		} else {
			err = kerr2
		}
	}

	if err == nil {
		err = errNoResolution
	}
	return false, false, false, err
}

func legWonByCandle(direction types.Direction, c klines.Candle) bool {
	if direction == types.DirectionYes {
		return c.Up()
	}
	return !c.Up()
}

var errNoResolution = &resolutionError{"settlement: no resolution chain step succeeded"}

type resolutionError struct{ msg string }

func (e *resolutionError) Error() string { return e.msg }
