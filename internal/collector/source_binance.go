package collector

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

// binanceReconnectDelay/binanceMaxReconnectDelay bound the doubling
// reconnect backoff shared by the four Binance futures stream kinds a
// collector source wraps.
const (
	binanceReconnectDelay    = 1 * time.Second
	binanceMaxReconnectDelay = 30 * time.Second
)

// runBinanceStream is the shared reconnect-with-backoff loop every Binance
// futures producer in this file uses: serve opens a single WS stream and
// returns its done/stop channels. The loop waits for done and reconnects,
// retries a failed serve with doubling backoff capped at 30s, and returns
// only when ctx is cancelled.
func runBinanceStream(ctx context.Context, serve func() (chan struct{}, chan struct{}, error)) error {
	delay := binanceReconnectDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		done, stop, err := serve()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > binanceMaxReconnectDelay {
				delay = binanceMaxReconnectDelay
			}
			continue
		}
		delay = binanceReconnectDelay

		select {
		case <-ctx.Done():
			close(stop)
			return ctx.Err()
		case <-done:
			continue
		}
	}
}

// OrderBookSource streams Binance futures top-of-book (partial depth,
// 100ms) for each configured symbol.
type OrderBookSource struct {
	Symbols []string
}

func (s *OrderBookSource) Run(ctx context.Context, pub Publisher) error {
	var wg sync.WaitGroup
	for _, symbol := range s.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			runBinanceStream(ctx, func() (chan struct{}, chan struct{}, error) {
				handler := func(event *futures.WsDepthEvent) {
					if len(event.Bids) == 0 || len(event.Asks) == 0 {
						return
					}
					bidPrice, _ := strconv.ParseFloat(event.Bids[0].Price, 64)
					bidQty, _ := strconv.ParseFloat(event.Bids[0].Quantity, 64)
					askPrice, _ := strconv.ParseFloat(event.Asks[0].Price, 64)
					askQty, _ := strconv.ParseFloat(event.Asks[0].Quantity, 64)
					pub.Publish(Record{
						Kind:        KindOrderBook,
						TimestampMs: nowMs(),
						Payload: OrderBookRecord{
							Symbol:  symbol,
							BestBid: bidPrice,
							BidQty:  bidQty,
							BestAsk: askPrice,
							AskQty:  askQty,
						},
					})
				}
				errHandler := func(err error) {}
				return futures.WsPartialDepthServe100Ms(symbol, 5, handler, errHandler)
			})
		}(symbol)
	}
	wg.Wait()
	return ctx.Err()
}

// FundingSource streams Binance futures mark-price/funding-rate ticks
// (1s interval) for each configured symbol.
type FundingSource struct {
	Symbols []string
}

func (s *FundingSource) Run(ctx context.Context, pub Publisher) error {
	var wg sync.WaitGroup
	for _, symbol := range s.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			runBinanceStream(ctx, func() (chan struct{}, chan struct{}, error) {
				handler := func(event *futures.WsMarkPriceEvent) {
					mark, _ := strconv.ParseFloat(event.MarkPrice, 64)
					index, _ := strconv.ParseFloat(event.IndexPrice, 64)
					rate, _ := strconv.ParseFloat(event.FundingRate, 64)
					pub.Publish(Record{
						Kind:        KindFunding,
						TimestampMs: nowMs(),
						Payload: FundingRecord{
							Symbol:        symbol,
							MarkPrice:     mark,
							IndexPrice:    index,
							FundingRate:   rate,
							NextFundingAt: event.NextFundingTime,
						},
					})
				}
				errHandler := func(err error) {}
				return futures.WsMarkPriceServe(symbol, handler, errHandler)
			})
		}(symbol)
	}
	wg.Wait()
	return ctx.Err()
}

// LiquidationSource streams Binance futures forced-liquidation prints for
// each configured symbol.
type LiquidationSource struct {
	Symbols []string
}

func (s *LiquidationSource) Run(ctx context.Context, pub Publisher) error {
	var wg sync.WaitGroup
	for _, symbol := range s.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			runBinanceStream(ctx, func() (chan struct{}, chan struct{}, error) {
				handler := func(event *futures.WsLiquidationOrderEvent) {
					order := event.LiquidationOrder
					price, _ := strconv.ParseFloat(order.Price, 64)
					qty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
					pub.Publish(Record{
						Kind:        KindLiquidation,
						TimestampMs: nowMs(),
						Payload: LiquidationRecord{
							Symbol:   symbol,
							Side:     string(order.Side),
							Price:    price,
							Quantity: qty,
							Status:   string(order.Status),
						},
					})
				}
				errHandler := func(err error) {}
				return futures.WsLiquidationOrderServe(symbol, handler, errHandler)
			})
		}(symbol)
	}
	wg.Wait()
	return ctx.Err()
}

// TradeTickSource streams Binance futures aggTrade prints for each
// configured symbol, maintaining a running CVD (cumulative volume delta)
// per symbol: an aggressive buy (IsBuyerMaker false) adds its quantity, an
// aggressive sell subtracts it.
type TradeTickSource struct {
	Symbols []string

	mu  sync.Mutex
	cvd map[string]float64
}

func (s *TradeTickSource) Run(ctx context.Context, pub Publisher) error {
	s.mu.Lock()
	if s.cvd == nil {
		s.cvd = make(map[string]float64, len(s.Symbols))
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, symbol := range s.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			runBinanceStream(ctx, func() (chan struct{}, chan struct{}, error) {
				handler := func(event *futures.WsAggTradeEvent) {
					price, _ := strconv.ParseFloat(event.Price, 64)
					qty, _ := strconv.ParseFloat(event.Quantity, 64)

					delta := qty
					if event.Maker {
						delta = -qty
					}
					s.mu.Lock()
					s.cvd[symbol] += delta
					cvd := s.cvd[symbol]
					s.mu.Unlock()

					pub.Publish(Record{
						Kind:        KindTradeTick,
						TimestampMs: nowMs(),
						Payload: TradeTickRecord{
							Symbol:       symbol,
							Price:        price,
							Quantity:     qty,
							IsBuyerMaker: event.Maker,
							CVD:          cvd,
						},
					})
				}
				errHandler := func(err error) {}
				return futures.WsAggTradeServe(symbol, handler, errHandler)
			})
		}(symbol)
	}
	wg.Wait()
	return ctx.Err()
}
