package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func TestCorrelationTrackerOrdersPairKeyRegardlessOfArgumentOrder(t *testing.T) {
	tracker := NewCorrelationTracker()
	tracker.Observe(types.BTC, types.ETH, true)
	tracker.Observe(types.ETH, types.BTC, false)

	snap, ok := tracker.Snapshot(types.BTC, types.ETH)
	require.True(t, ok)
	assert.Equal(t, 2, snap.TotalObserved)
	assert.InDelta(t, 0.5, snap.CumulativeRate, 1e-9)
}

func TestCorrelationTrackerRingEvictsOldestBeyondCapacity(t *testing.T) {
	tracker := NewCorrelationTracker()
	for i := 0; i < CorrelationRingSize; i++ {
		tracker.Observe(types.BTC, types.SOL, true)
	}
	// Push 10 incorrect observations past the ring capacity; the window
	// correct-rate should drop while the cumulative rate barely moves.
	for i := 0; i < 10; i++ {
		tracker.Observe(types.BTC, types.SOL, false)
	}

	snap, ok := tracker.Snapshot(types.BTC, types.SOL)
	require.True(t, ok)
	assert.Equal(t, CorrelationRingSize, snap.WindowSize)
	assert.InDelta(t, float64(CorrelationRingSize-10)/float64(CorrelationRingSize), snap.WindowCorrect, 1e-9)
	assert.Greater(t, snap.CumulativeRate, snap.WindowCorrect)
}

func TestCorrelationTrackerSnapshotUnknownPairIsNotOK(t *testing.T) {
	tracker := NewCorrelationTracker()
	_, ok := tracker.Snapshot(types.XRP, types.BTC)
	assert.False(t, ok)
}

func TestCorrelationTrackerAllIsSortedByCoinPair(t *testing.T) {
	tracker := NewCorrelationTracker()
	tracker.Observe(types.ETH, types.SOL, true)
	tracker.Observe(types.BTC, types.ETH, true)

	all := tracker.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.BTC, all[0].CoinA)
	assert.Equal(t, types.ETH, all[0].CoinB)
	assert.Equal(t, types.ETH, all[1].CoinA)
	assert.Equal(t, types.SOL, all[1].CoinB)
}
