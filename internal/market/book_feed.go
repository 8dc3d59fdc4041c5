package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

const (
	initialBackoff  = 1 * time.Second
	maxBackoff      = 30 * time.Second
	backoffJitter   = 0.20 // +/- 20%
	readTimeout     = 90 * time.Second
	writeTimeout    = 10 * time.Second
	pingInterval    = 50 * time.Second
)

// wireBookEvent and wirePriceChangeEvent mirror the Polymarket market-channel
// wire shapes: a full snapshot and an incremental delta, keyed by token ID.
type wireBookEvent struct {
	EventType string              `json:"event_type"`
	AssetID   string              `json:"asset_id"`
	Buys      []wirePriceLevel    `json:"buys"`
	Sells     []wirePriceLevel    `json:"sells"`
}

type wirePriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wirePriceChangeEvent struct {
	EventType    string               `json:"event_type"`
	PriceChanges []wirePriceChangeRow `json:"price_changes"`
}

type wirePriceChangeRow struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"` // "BUY" or "SELL"
}

// BookFeedStatus is the observable state of a BookFeed, exposed for
// diagnostics and dashboards.
type BookFeedStatus struct {
	IsReady           bool
	LastUpdateMs      map[string]int64
	ReconnectAttempts int
	SequenceGaps      int
}

// BookFeed owns a single WebSocket subscription covering a fixed set of
// Polymarket token IDs and keeps one *OrderBook per token current. It is
// adapted from a market-maker's dual market/user WS channel handler,
// generalized to an arbitrary token-ID subscription set with a
// wait-for-ready barrier the dual-leg detectors need before trusting a
// pair of books.
type BookFeed struct {
	url      string
	tokenIDs []string
	logger   *slog.Logger

	mu                sync.RWMutex
	books             map[string]*OrderBook
	lastUpdateMs      map[string]int64
	reconnectAttempts int
	sequenceGaps      int
	seq               uint64

	connMu sync.Mutex
	conn   *websocket.Conn

	readyCh   chan struct{}
	readyOnce sync.Once
}

// NewBookFeed creates a feed that will subscribe to tokenIDs once Run is
// called.
func NewBookFeed(wsURL string, tokenIDs []string, logger *slog.Logger) *BookFeed {
	books := make(map[string]*OrderBook, len(tokenIDs))
	for _, id := range tokenIDs {
		books[id] = NewOrderBook(id)
	}
	return &BookFeed{
		url:          wsURL,
		tokenIDs:     tokenIDs,
		logger:       logger.With("component", "book_feed"),
		books:        books,
		lastUpdateMs: make(map[string]int64, len(tokenIDs)),
		readyCh:      make(chan struct{}),
	}
}

// GetBooks returns the order books for yesID and noID as a consistent
// pair: both are fetched without an intervening mutation, since OrderBook
// itself is RWMutex-protected and each book's read is self-consistent;
// BookFeed never mutates two books under one combined lock, matching the
// "no lock held across a blocking await" resource rule.
func (f *BookFeed) GetBooks(yesID, noID string) (yes, no *OrderBook, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	yes, yok := f.books[yesID]
	no, nok := f.books[noID]
	return yes, no, yok && nok
}

// Book returns the single order book tracked for tokenID, if this feed
// subscribes to it.
func (f *BookFeed) Book(tokenID string) (*OrderBook, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.books[tokenID]
	return b, ok
}

// WaitForReady blocks until every subscribed token has received at least
// one snapshot, or timeout elapses.
func (f *BookFeed) WaitForReady(ctx context.Context, timeout time.Duration) error {
	select {
	case <-f.readyCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("market: book feed not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of feed health for dashboards.
func (f *BookFeed) Status() BookFeedStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	last := make(map[string]int64, len(f.lastUpdateMs))
	for k, v := range f.lastUpdateMs {
		last[k] = v
	}
	return BookFeedStatus{
		IsReady:           f.allReadyLocked(),
		LastUpdateMs:      last,
		ReconnectAttempts: f.reconnectAttempts,
		SequenceGaps:      f.sequenceGaps,
	}
}

func (f *BookFeed) allReadyLocked() bool {
	for _, b := range f.books {
		if !b.IsReady() {
			return false
		}
	}
	return true
}

func (f *BookFeed) checkReady() {
	f.mu.RLock()
	ready := f.allReadyLocked()
	f.mu.RUnlock()
	if ready {
		f.readyOnce.Do(func() { close(f.readyCh) })
	}
}

// Run connects and maintains the WebSocket connection with exponential
// backoff (1s -> 30s, +/-20% jitter), reconnecting indefinitely until ctx
// is cancelled. On every reconnect, all books are cleared and must be
// resnapshotted before WaitForReady resolves again.
func (f *BookFeed) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.mu.Lock()
		f.reconnectAttempts++
		for _, b := range f.books {
			b.Clear()
		}
		f.mu.Unlock()
		f.readyCh = make(chan struct{})
		f.readyOnce = sync.Once{}

		f.logger.Warn("book feed disconnected, reconnecting", "error", err, "backoff", backoff)

		wait := jitter(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * backoffJitter
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

func (f *BookFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.writeJSON(types.WSSubscribeMsg{Type: "market", AssetIDs: f.tokenIDs}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("book feed connected", "tokens", len(f.tokenIDs))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatchMessage(msg)
	}
}

func (f *BookFeed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json book feed message")
		return
	}

	switch envelope.EventType {
	case "book":
		var evt wireBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		f.applySnapshot(evt)
	case "price_change":
		var evt wirePriceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		f.applyDeltas(evt)
	default:
		f.logger.Debug("ignoring book feed event", "type", envelope.EventType)
	}
}

func (f *BookFeed) applySnapshot(evt wireBookEvent) {
	f.mu.RLock()
	book, ok := f.books[evt.AssetID]
	f.mu.RUnlock()
	if !ok {
		f.logger.Debug("snapshot for unknown token, skipping", "asset", evt.AssetID)
		return
	}

	if err := book.ApplySnapshot(toLevels(evt.Buys), toLevels(evt.Sells)); err != nil {
		f.logger.Warn("crossed book on snapshot, cleared and waiting for resnapshot", "asset", evt.AssetID, "error", err)
		return
	}

	f.mu.Lock()
	f.lastUpdateMs[evt.AssetID] = time.Now().UnixMilli()
	f.mu.Unlock()
	f.checkReady()
}

func (f *BookFeed) applyDeltas(evt wirePriceChangeEvent) {
	for _, row := range evt.PriceChanges {
		f.mu.RLock()
		book, ok := f.books[row.AssetID]
		f.mu.RUnlock()
		if !ok {
			continue
		}

		price, err1 := decimal.NewFromString(row.Price)
		size, err2 := decimal.NewFromString(row.Size)
		if err1 != nil || err2 != nil {
			f.logger.Error("malformed price_change level", "asset", row.AssetID)
			continue
		}

		side := types.Sell
		if row.Side == string(types.Buy) {
			side = types.Buy
		}

		f.mu.Lock()
		f.seq++
		seq := f.seq
		f.mu.Unlock()

		if err := book.ApplyDelta(side, price, size, seq); err != nil {
			f.mu.Lock()
			f.sequenceGaps++
			f.mu.Unlock()
			f.logger.Warn("crossed book on delta, cleared and waiting for resnapshot", "asset", row.AssetID, "error", err)
			continue
		}

		f.mu.Lock()
		f.lastUpdateMs[row.AssetID] = time.Now().UnixMilli()
		f.mu.Unlock()
	}
}

func toLevels(wire []wirePriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(wire))
	for _, w := range wire {
		p, err1 := decimal.NewFromString(w.Price)
		s, err2 := decimal.NewFromString(w.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, PriceLevel{Price: p, Size: s})
	}
	return out
}

func (f *BookFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *BookFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("book feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *BookFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("book feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}

// Close closes the underlying connection, if any.
func (f *BookFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
