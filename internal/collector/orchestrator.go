package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultChannelCapacity bounds the shared producer->sink channel.
const DefaultChannelCapacity = 1000

// DefaultSinkBatchSize is how many records the sink accumulates before
// flushing, whichever comes first against DefaultSinkFlushInterval.
const DefaultSinkBatchSize = 100

// DefaultSinkFlushInterval is the sink's flush deadline when fewer than
// DefaultSinkBatchSize records have arrived.
const DefaultSinkFlushInterval = 5 * time.Second

// DefaultHealthLogInterval is how often HealthStats are logged.
const DefaultHealthLogInterval = 5 * time.Minute

// Publisher is how a Producer emits records: a non-blocking, counted send
// onto the orchestrator's shared channel.
type Publisher interface {
	Publish(r Record)
}

// Producer is one source goroutine: it feeds records into pub until ctx is
// cancelled or it hits an unrecoverable error.
type Producer interface {
	Run(ctx context.Context, pub Publisher) error
}

// Sink persists a batch of records; one batch may mix record kinds, each
// SinkRecord carrying its own Kind.
type Sink interface {
	InsertSignalBatch(ctx context.Context, records []SinkRecord) error
}

// SinkRecord is the store-facing shape of a Record, payload pre-marshaled.
type SinkRecord struct {
	Kind        string
	TimestampMs int64
	Payload     string
}

// Config tunes the orchestrator's channel sizing and batching cadence.
type Config struct {
	ChannelCapacity   int
	SinkBatchSize     int
	SinkFlushInterval time.Duration
	HealthLogInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = DefaultChannelCapacity
	}
	if c.SinkBatchSize <= 0 {
		c.SinkBatchSize = DefaultSinkBatchSize
	}
	if c.SinkFlushInterval <= 0 {
		c.SinkFlushInterval = DefaultSinkFlushInterval
	}
	if c.HealthLogInterval <= 0 {
		c.HealthLogInterval = DefaultHealthLogInterval
	}
}

// Orchestrator runs one goroutine per producer and a single sink goroutine
// that batches every record kind into the store, mirroring
// yoghaf-market-indikator's bus: producers never block on a slow sink,
// since the shared channel drops (and counts) rather than backpressures
// the market-data read loop.
type Orchestrator struct {
	cfg       Config
	producers map[string]Producer
	sink      Sink
	health    *HealthStats
	logger    *slog.Logger

	ch chan Record
}

// NewOrchestrator wires producers (keyed by source name, e.g. "orderbook")
// to sink, sized per cfg.
func NewOrchestrator(cfg Config, producers map[string]Producer, sink Sink, health *HealthStats, logger *slog.Logger) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{
		cfg:       cfg,
		producers: producers,
		sink:      sink,
		health:    health,
		logger:    logger.With("component", "collector-orchestrator"),
		ch:        make(chan Record, cfg.ChannelCapacity),
	}
}

// Run starts every configured producer and the sink, blocking until ctx is
// cancelled. On cancellation it stops accepting new producer output, drains
// whatever is already buffered, and flushes one final batch before
// returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for name, p := range o.producers {
		wg.Add(1)
		go func(name string, p Producer) {
			defer wg.Done()
			if err := p.Run(ctx, o); err != nil && ctx.Err() == nil {
				o.logger.Error("producer stopped", "source", name, "error", err)
			}
		}(name, p)
	}

	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		o.runSink(ctx)
	}()

	healthTicker := time.NewTicker(o.cfg.HealthLogInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			close(o.ch)
			<-sinkDone
			o.health.logHealth(o.logger)
			return ctx.Err()
		case <-healthTicker.C:
			o.health.logHealth(o.logger)
		}
	}
}

// Publish is what a Producer's Run loop calls to emit a record. It never
// blocks: a full channel drops the record and increments the dropped
// counter, the same non-blocking-publish policy as the teacher's signal
// channels (internal/runner.trySend).
func (o *Orchestrator) Publish(r Record) {
	select {
	case o.ch <- r:
		o.health.recordReceived(r.Kind)
	default:
		o.health.recordDropped(r.Kind)
	}
}

func (o *Orchestrator) runSink(ctx context.Context) {
	batch := make([]Record, 0, o.cfg.SinkBatchSize)
	ticker := time.NewTicker(o.cfg.SinkFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		records := make([]SinkRecord, 0, len(batch))
		for _, r := range batch {
			payload, err := marshal(r)
			if err != nil {
				o.logger.Error("failed to marshal record", "kind", string(r.Kind), "error", err)
				continue
			}
			records = append(records, SinkRecord{Kind: string(r.Kind), TimestampMs: r.TimestampMs, Payload: payload})
		}
		// Use a background context for the final drain flush: ctx may
		// already be cancelled by the time we get here.
		if err := o.sink.InsertSignalBatch(context.Background(), records); err != nil {
			o.logger.Error("sink flush failed", "batch_size", len(records), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-o.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= o.cfg.SinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
