package settlement

import (
	"sort"
	"sync"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// CorrelationRingSize bounds how many recent observations are kept per
// coin pair before the oldest is evicted.
const CorrelationRingSize = 200

// pairKey canonicalizes an unordered coin pair so (BTC,ETH) and (ETH,BTC)
// share one ring.
func pairKey(a, b types.Coin) [2]types.Coin {
	if a <= b {
		return [2]types.Coin{a, b}
	}
	return [2]types.Coin{b, a}
}

// pairStats is one coin pair's bounded observation ring and running totals.
type pairStats struct {
	observations []bool // ring buffer of recent correct/incorrect calls
	next         int
	total        int
	correct      int
}

func (p *pairStats) record(correct bool) {
	if len(p.observations) < CorrelationRingSize {
		p.observations = append(p.observations, correct)
	} else {
		p.observations[p.next] = correct
		p.next = (p.next + 1) % CorrelationRingSize
	}
	p.total++
	if correct {
		p.correct++
	}
}

func (p *pairStats) correctRate() float64 {
	if len(p.observations) == 0 {
		return 0
	}
	n := 0
	for _, c := range p.observations {
		if c {
			n++
		}
	}
	return float64(n) / float64(len(p.observations))
}

// CorrelationTracker maintains, per tracked coin pair, a bounded ring of
// the last 200 directional-correlation observations plus a cumulative
// correct-rate, so the metrics layer can answer "how reliable has the
// BTC/ETH correlation assumption been recently" versus "ever". Grounded
// on the teacher's in-memory position book (a mutex-guarded map updated
// from the hot path, read by the metrics exporter).
type CorrelationTracker struct {
	mu    sync.RWMutex
	pairs map[[2]types.Coin]*pairStats
}

// NewCorrelationTracker builds an empty tracker.
func NewCorrelationTracker() *CorrelationTracker {
	return &CorrelationTracker{pairs: make(map[[2]types.Coin]*pairStats)}
}

// Observe records whether coin1's and coin2's directions matched on a
// single resolved settlement.
func (t *CorrelationTracker) Observe(coin1, coin2 types.Coin, correct bool) {
	key := pairKey(coin1, coin2)
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pairs[key]
	if !ok {
		p = &pairStats{}
		t.pairs[key] = p
	}
	p.record(correct)
}

// PairSnapshot is the read-only view of one pair's tracked correlation.
type PairSnapshot struct {
	CoinA          types.Coin
	CoinB          types.Coin
	TotalObserved  int
	WindowSize     int
	WindowCorrect  float64 // correct-rate over the last <=200 observations
	CumulativeRate float64 // correct-rate over all observations ever seen
}

// Snapshot returns the current correlation read for coin1/coin2, or
// ok=false if the pair has never been observed.
func (t *CorrelationTracker) Snapshot(coin1, coin2 types.Coin) (PairSnapshot, bool) {
	key := pairKey(coin1, coin2)
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pairs[key]
	if !ok {
		return PairSnapshot{}, false
	}
	cumulative := 0.0
	if p.total > 0 {
		cumulative = float64(p.correct) / float64(p.total)
	}
	return PairSnapshot{
		CoinA:          key[0],
		CoinB:          key[1],
		TotalObserved:  p.total,
		WindowSize:     len(p.observations),
		WindowCorrect:  p.correctRate(),
		CumulativeRate: cumulative,
	}, true
}

// All returns a snapshot for every tracked pair, sorted for stable
// output (e.g. a /metrics dump).
func (t *CorrelationTracker) All() []PairSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PairSnapshot, 0, len(t.pairs))
	for key, p := range t.pairs {
		cumulative := 0.0
		if p.total > 0 {
			cumulative = float64(p.correct) / float64(p.total)
		}
		out = append(out, PairSnapshot{
			CoinA:          key[0],
			CoinB:          key[1],
			TotalObserved:  p.total,
			WindowSize:     len(p.observations),
			WindowCorrect:  p.correctRate(),
			CumulativeRate: cumulative,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CoinA != out[j].CoinA {
			return out[i].CoinA < out[j].CoinA
		}
		return out[i].CoinB < out[j].CoinB
	})
	return out
}
