package market_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
)

func TestSpotPriceTrackerCapturesReferenceOncePerWindow(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(10)

	tr.Update(100, 900_000)
	price, start, ok := tr.Reference()
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, int64(900_000), start)

	tr.Update(105, 900_000+100_000)
	price2, start2, _ := tr.Reference()
	assert.Equal(t, 100.0, price2) // unchanged within same window
	assert.Equal(t, int64(900_000), start2)

	tr.Update(110, 900_000+window.Size)
	price3, start3, _ := tr.Reference()
	assert.Equal(t, 110.0, price3) // new window, new reference
	assert.Equal(t, int64(900_000+window.Size), start3)
}

func TestSpotPriceTrackerInvariant(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(10)
	tr.Update(50, 1_234_567)

	current, ok := tr.Current()
	assert.True(t, ok)
	_, windowStart, hasRef := tr.Reference()
	assert.True(t, hasRef)
	assert.Equal(t, window.Start(current.TMs), windowStart)
}

func TestSpotPriceTrackerEvictsOverCapacity(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(3)
	for i := int64(0); i < 10; i++ {
		tr.Update(float64(i), i*1000)
	}
	snap := tr.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, 9.0, snap[0].Price) // newest first
}

func TestSpotPriceTrackerChangeVsReference(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(10)
	tr.Update(100, 0)
	tr.Update(101, 5000)

	abs, pct, ok := tr.ChangeVsReference()
	assert.True(t, ok)
	assert.Equal(t, 1.0, abs)
	assert.InDelta(t, 0.01, pct, 1e-9)
}

func TestSpotPriceTrackerConcurrentUpdatesNoRace(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Update(float64(i), int64(i)*1000)
			_, _ = tr.Snapshot(), 0
		}(i)
	}
	wg.Wait()
	_, ok := tr.Current()
	assert.True(t, ok)
}

func TestReferenceTrackerWraps(t *testing.T) {
	t.Parallel()
	tr := market.NewSpotPriceTracker(10)
	rt := market.NewReferenceTracker(tr)

	_, ok := rt.CurrentReference()
	assert.False(t, ok)

	tr.Update(42, 900_000)
	ref, ok := rt.CurrentReference()
	assert.True(t, ok)
	assert.Equal(t, 42.0, ref.ReferencePrice)
	assert.Equal(t, int64(900_000), ref.WindowStartMs)
}
