package market

import (
	"sync"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
)

// DefaultTrackerCapacity bounds the spot-price ring; entries beyond this
// are evicted oldest-first.
const DefaultTrackerCapacity = 3000

// SpotPrice is a single observed price at a point in time.
type SpotPrice struct {
	Price float64
	TMs   int64
}

// SpotPriceTracker is a single-writer/multiple-reader ring buffer of spot
// prices for one coin. It captures a window reference — the first price
// observed in each new 15-minute window — atomically with respect to
// readers: a reader never observes a new window_start without its
// corresponding reference, since both fields are written under the same
// lock in the same critical section.
type SpotPriceTracker struct {
	mu       sync.RWMutex
	capacity int
	ring     []SpotPrice // newest first

	current       SpotPrice
	hasCurrent    bool
	referenceP    float64
	windowStartMs int64
	hasReference  bool
}

// NewSpotPriceTracker creates a tracker with the given ring capacity (use
// DefaultTrackerCapacity if unsure).
func NewSpotPriceTracker(capacity int) *SpotPriceTracker {
	if capacity <= 0 {
		capacity = DefaultTrackerCapacity
	}
	return &SpotPriceTracker{capacity: capacity}
}

// Update records a new spot observation. It pushes to the front of the
// ring, evicting the oldest entry past capacity, then — in the same
// critical section — captures a new window reference if the observation's
// window differs from the tracked one.
func (t *SpotPriceTracker) Update(price float64, tMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring = append([]SpotPrice{{Price: price, TMs: tMs}}, t.ring...)
	if len(t.ring) > t.capacity {
		t.ring = t.ring[:t.capacity]
	}

	w := window.Start(tMs)
	if !t.hasReference || w != t.windowStartMs {
		t.windowStartMs = w
		t.referenceP = price
		t.hasReference = true
	}

	t.current = SpotPrice{Price: price, TMs: tMs}
	t.hasCurrent = true
}

// Current returns the most recent observation, if any.
func (t *SpotPriceTracker) Current() (SpotPrice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.hasCurrent
}

// Reference returns the currently captured window reference price and its
// window start, if any observation has arrived yet.
func (t *SpotPriceTracker) Reference() (price float64, windowStartMs int64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.referenceP, t.windowStartMs, t.hasReference
}

// ChangeVsReference returns the absolute and percentage change of the
// current price vs. the window reference. ok is false if either is absent.
func (t *SpotPriceTracker) ChangeVsReference() (abs, pct float64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.hasCurrent || !t.hasReference || t.referenceP == 0 {
		return 0, 0, false
	}
	abs = t.current.Price - t.referenceP
	pct = abs / t.referenceP
	return abs, pct, true
}

// Snapshot returns a bounded copy of the ring, newest first. Intended for
// diagnostics and the backtest's point-in-time price provider.
func (t *SpotPriceTracker) Snapshot() []SpotPrice {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SpotPrice, len(t.ring))
	copy(out, t.ring)
	return out
}

// WindowReference is the reference tracker's exposed view of a window's
// price-to-beat.
type WindowReference struct {
	ReferencePrice float64
	WindowStartMs  int64
}

// TimeRemainingMs returns the time remaining in this reference's window as
// of now.
func (r WindowReference) TimeRemainingMs(nowMs int64) int64 {
	return window.TimeRemaining(nowMs)
}

// ReferenceTracker is a thin adapter over SpotPriceTracker exposing only
// the window-reference view detectors need.
type ReferenceTracker struct {
	tracker *SpotPriceTracker
}

// NewReferenceTracker wraps an existing SpotPriceTracker.
func NewReferenceTracker(tracker *SpotPriceTracker) *ReferenceTracker {
	return &ReferenceTracker{tracker: tracker}
}

// CurrentReference returns the active window reference, if one has been
// captured yet.
func (r *ReferenceTracker) CurrentReference() (WindowReference, bool) {
	price, start, ok := r.tracker.Reference()
	if !ok {
		return WindowReference{}, false
	}
	return WindowReference{ReferencePrice: price, WindowStartMs: start}, true
}
