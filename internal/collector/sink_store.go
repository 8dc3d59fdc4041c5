package collector

import (
	"context"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/store"
)

// StoreSink adapts internal/store.Store to the collector's Sink interface,
// translating the collector's SinkRecord into store.SignalRecord. Kept as
// a thin adapter rather than having internal/store depend on
// internal/collector's vocabulary, or vice versa.
type StoreSink struct {
	Store *store.Store
}

func (s *StoreSink) InsertSignalBatch(ctx context.Context, records []SinkRecord) error {
	out := make([]store.SignalRecord, len(records))
	for i, r := range records {
		out[i] = store.SignalRecord{Kind: r.Kind, TimestampMs: r.TimestampMs, Payload: r.Payload}
	}
	return s.Store.InsertSignalBatch(ctx, out)
}
