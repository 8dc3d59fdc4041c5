package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newOpportunity() types.CrossMarketOpportunity {
	return types.CrossMarketOpportunity{
		ID:                  uuid.New(),
		Leg1TokenID:         "yes-token",
		Leg2TokenID:         "no-token",
		Leg1Coin:            types.BTC,
		Leg2Coin:            types.BTC,
		Leg1Direction:       types.DirectionYes,
		Leg2Direction:       types.DirectionNo,
		ExpectedLeg1Outcome: types.OutcomeWin,
		ExpectedLeg2Outcome: types.OutcomeLoss,
		TotalCost:           money.New(0.6),
		DetectedAt:          1_000,
		WindowEndMs:         2_000,
	}
}

func TestInsertAndFetchPendingOpportunity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	opp := newOpportunity()
	require.NoError(t, s.InsertOpportunity(ctx, opp))

	pending, err := s.PendingOpportunities(ctx, 5_000)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, opp.ID, pending[0].ID)
	assert.Equal(t, opp.Leg1TokenID, pending[0].Leg1TokenID)
	assert.True(t, opp.TotalCost.Equal(pending[0].TotalCost))
}

func TestSaveOpportunityRemovesItFromPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	opp := newOpportunity()
	require.NoError(t, s.InsertOpportunity(ctx, opp))

	win := types.OutcomeWin
	loss := types.OutcomeLoss
	settledAt := int64(10_000)
	pnl := money.New(0.38)
	correct := true
	opp.RealizedLeg1Outcome = &win
	opp.RealizedLeg2Outcome = &loss
	opp.RealizedPnL = &pnl
	opp.SettledAt = &settledAt
	opp.CorrelationCorrect = &correct

	require.NoError(t, s.SaveOpportunity(ctx, opp))

	pending, err := s.PendingOpportunities(ctx, 20_000)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSaveOpportunityExpiredStillNotPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	opp := newOpportunity()
	require.NoError(t, s.InsertOpportunity(ctx, opp))
	opp.Expired = true
	require.NoError(t, s.SaveOpportunity(ctx, opp))

	pending, err := s.PendingOpportunities(ctx, 20_000)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInsertSignalBatchAndRecentSignals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []SignalRecord{
		{Kind: "orderbook", TimestampMs: 1, Payload: `{"a":1}`},
		{Kind: "orderbook", TimestampMs: 2, Payload: `{"a":2}`},
		{Kind: "funding", TimestampMs: 1, Payload: `{"rate":0.01}`},
	}
	require.NoError(t, s.InsertSignalBatch(ctx, records))

	recent, err := s.RecentSignals(ctx, "orderbook", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].TimestampMs) // most recent first
}

func TestInsertSignalBatchEmptyIsNoOp(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertSignalBatch(context.Background(), nil))
}
