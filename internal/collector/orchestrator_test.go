package collector

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProducer emits a fixed number of records as fast as possible, then
// blocks until ctx is cancelled (mirroring a real streaming producer that
// keeps its goroutine alive after its burst).
type stubProducer struct {
	kind  Kind
	count int
}

func (p *stubProducer) Run(ctx context.Context, pub Publisher) error {
	for i := 0; i < p.count; i++ {
		pub.Publish(Record{Kind: p.kind, TimestampMs: int64(i), Payload: map[string]int{"i": i}})
	}
	<-ctx.Done()
	return ctx.Err()
}

// memorySink collects every flushed batch in memory for assertions.
type memorySink struct {
	mu      sync.Mutex
	batches [][]SinkRecord
}

func (s *memorySink) InsertSignalBatch(ctx context.Context, records []SinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]SinkRecord, len(records))
	copy(cp, records)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *memorySink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestOrchestratorFlushesOnBatchSize(t *testing.T) {
	sink := &memorySink{}
	health := NewHealthStats(prometheus.NewRegistry())
	producers := map[string]Producer{"orderbook": &stubProducer{kind: KindOrderBook, count: 250}}

	orch := NewOrchestrator(Config{SinkBatchSize: 100, SinkFlushInterval: time.Hour, ChannelCapacity: 1000}, producers, sink, health, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = orch.Run(ctx)

	assert.Equal(t, 250, sink.total())
}

func TestOrchestratorFlushesOnTickerWhenBelowBatchSize(t *testing.T) {
	sink := &memorySink{}
	health := NewHealthStats(prometheus.NewRegistry())
	producers := map[string]Producer{"funding": &stubProducer{kind: KindFunding, count: 5}}

	orch := NewOrchestrator(Config{SinkBatchSize: 100, SinkFlushInterval: 20 * time.Millisecond, ChannelCapacity: 1000}, producers, sink, health, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_ = orch.Run(ctx)

	assert.Equal(t, 5, sink.total())
}

func TestOrchestratorDropsWhenChannelFull(t *testing.T) {
	health := NewHealthStats(prometheus.NewRegistry())
	orch := NewOrchestrator(Config{ChannelCapacity: 2, SinkBatchSize: 1000, SinkFlushInterval: time.Hour}, nil, &memorySink{}, health, testLogger())

	for i := 0; i < 10; i++ {
		orch.Publish(Record{Kind: KindOrderBook, TimestampMs: int64(i)})
	}

	snap := health.snapshot()
	require.Equal(t, int64(2), snap.Received[KindOrderBook])
	require.Equal(t, int64(8), snap.Dropped[KindOrderBook])
}

func TestHealthStatsLogHealthDoesNotPanicWithNoData(t *testing.T) {
	health := NewHealthStats(prometheus.NewRegistry())
	health.logHealth(testLogger())
}
