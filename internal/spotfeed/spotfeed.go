// Package spotfeed maintains a live Binance aggTrade connection per coin,
// feeding observed spot prices into a market.SpotPriceTracker. It is
// grounded on the Binance websocket helpers of
// github.com/adshao/go-binance/v2, with an automatic fallback to the
// futures stream when the spot stream is geo-blocked.
package spotfeed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

const (
	// HeartbeatWarn is how long without a message before a warning is logged.
	HeartbeatWarn = 30 * time.Second
	// HeartbeatReconnect is how long without a message before the watchdog
	// forces a reconnect.
	HeartbeatReconnect = 60 * time.Second
)

// Source is the abstract spot-price stream contract: a sequence of
// (price, event_time_ms) observations for one coin.
type Source interface {
	// Run blocks, feeding observations into tracker, until ctx is
	// cancelled or an unrecoverable error occurs.
	Run(ctx context.Context, tracker *market.SpotPriceTracker) error
}

// BinanceSource streams wss://.../{symbol}@aggTrade for one coin, falling
// back to the equivalent futures stream if the spot stream is geo-blocked,
// and running a heartbeat watchdog that forces a reconnect after
// HeartbeatReconnect of silence.
type BinanceSource struct {
	Coin   types.Coin
	Symbol string
	logger *slog.Logger

	mu          sync.Mutex
	lastMessage time.Time
}

// NewBinanceSource creates a spot feed for coin, using its canonical
// Binance trading symbol.
func NewBinanceSource(coin types.Coin, logger *slog.Logger) *BinanceSource {
	return &BinanceSource{
		Coin:   coin,
		Symbol: coin.BinanceSymbol(),
		logger: logger.With("component", "spot_feed", "coin", string(coin)),
	}
}

// Run streams aggTrade events into tracker until ctx is cancelled. It
// prefers the spot stream and falls back to the futures stream on dial
// failure (the geo-block case); a watchdog goroutine forces a reconnect
// if no message has arrived within HeartbeatReconnect.
func (s *BinanceSource) Run(ctx context.Context, tracker *market.SpotPriceTracker) error {
	s.touch()

	watchdogCtx, cancelWatchdog := context.WithCancel(ctx)
	defer cancelWatchdog()
	restartCh := make(chan struct{}, 1)
	go s.watchdog(watchdogCtx, restartCh)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		done, stop, err := s.serveSpot(tracker)
		if err != nil {
			s.logger.Warn("spot stream unavailable, falling back to futures", "error", err)
			done, stop, err = s.serveFutures(tracker)
			if err != nil {
				return fmt.Errorf("spotfeed: both spot and futures streams failed: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			close(stop)
			return ctx.Err()
		case <-restartCh:
			close(stop)
			continue
		case <-done:
			s.logger.Warn("spot stream closed, reconnecting")
			continue
		}
	}
}

func (s *BinanceSource) serveSpot(tracker *market.SpotPriceTracker) (chan struct{}, chan struct{}, error) {
	handler := func(event *binance.WsAggTradeEvent) {
		s.touch()
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			return
		}
		tracker.Update(price, event.TradeTime)
	}
	errHandler := func(err error) {
		s.logger.Warn("spot aggtrade stream error", "error", err)
	}
	return binance.WsAggTradeServe(s.Symbol, handler, errHandler)
}

func (s *BinanceSource) serveFutures(tracker *market.SpotPriceTracker) (chan struct{}, chan struct{}, error) {
	handler := func(event *futures.WsAggTradeEvent) {
		s.touch()
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			return
		}
		tracker.Update(price, event.TradeTime)
	}
	errHandler := func(err error) {
		s.logger.Warn("futures aggtrade stream error", "error", err)
	}
	return futures.WsAggTradeServe(s.Symbol, handler, errHandler)
}

func (s *BinanceSource) touch() {
	s.mu.Lock()
	s.lastMessage = time.Now()
	s.mu.Unlock()
}

func (s *BinanceSource) silenceSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMessage.IsZero() {
		return 0
	}
	return time.Since(s.lastMessage)
}

func (s *BinanceSource) watchdog(ctx context.Context, restart chan<- struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	warned := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			silence := s.silenceSince()
			if silence >= HeartbeatReconnect {
				s.logger.Warn("spot feed silent beyond heartbeat reconnect threshold, forcing reconnect", "silence", silence)
				warned = false
				select {
				case restart <- struct{}{}:
				default:
				}
			} else if silence >= HeartbeatWarn && !warned {
				s.logger.Warn("spot feed silent beyond heartbeat warn threshold", "silence", silence)
				warned = true
			}
		}
	}
}
