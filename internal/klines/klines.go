// Package klines resolves a single 15-minute candle covering a settlement
// window, falling back across exchanges per the settlement resolver's
// chain: Binance.US, then Binance, then CoinGecko. It is grounded on the
// teacher's resty-based REST client shape, generalized from order
// management to read-only candle lookups, plus adshao/go-binance/v2 for
// the two Binance-family legs.
package klines

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/go-resty/resty/v2"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// Candle is the single OHLC bar a resolver needs: did price close above
// where it opened.
type Candle struct {
	Open      float64
	Close     float64
	CloseTime int64 // ms since epoch
	Source    string
	Approximate bool
}

// Up reports whether the window resolved upward.
func (c Candle) Up() bool {
	return c.Close > c.Open
}

// Client fetches the single 15-minute candle covering [startMs, startMs+windowMs)
// for coin, trying its configured sources in order.
type Client interface {
	Candle(ctx context.Context, coin types.Coin, startMs, windowMs int64) (Candle, error)
}

// Chain tries Binance.US, then Binance, then CoinGecko, returning the
// first source that answers. Binance.US and Binance legs require
// close_time <= now (the candle must be fully closed) before it is
// trusted; the CoinGecko leg is always marked Approximate.
type Chain struct {
	binanceUS *binance.Client
	binance   *binance.Client
	coinGecko *resty.Client
	now       func() int64
}

// NewChain builds the fallback chain. now is injected for deterministic
// "is this candle closed yet" checks in tests.
func NewChain(now func() int64) *Chain {
	us := binance.NewClient("", "")
	us.BaseURL = "https://api.binance.us"

	return &Chain{
		binanceUS: us,
		binance:   binance.NewClient("", ""),
		coinGecko: resty.New().SetBaseURL("https://api.coingecko.com/api/v3").SetTimeout(10 * time.Second),
		now:       now,
	}
}

func (c *Chain) Candle(ctx context.Context, coin types.Coin, startMs, windowMs int64) (Candle, error) {
	endMs := startMs + windowMs

	if candle, err := c.fromBinance(ctx, c.binanceUS, "binance.us", coin, startMs, endMs); err == nil {
		return candle, nil
	}
	if candle, err := c.fromBinance(ctx, c.binance, "binance", coin, startMs, endMs); err == nil {
		return candle, nil
	}
	return c.fromCoinGecko(ctx, coin, startMs, endMs)
}

func (c *Chain) fromBinance(ctx context.Context, client *binance.Client, source string, coin types.Coin, startMs, endMs int64) (Candle, error) {
	klines, err := client.NewKlinesService().
		Symbol(coin.BinanceSymbol()).
		Interval("15m").
		StartTime(startMs).
		EndTime(endMs).
		Limit(1).
		Do(ctx)
	if err != nil {
		return Candle{}, fmt.Errorf("klines: %s: %w", source, err)
	}
	if len(klines) == 0 {
		return Candle{}, fmt.Errorf("klines: %s: no candle for window", source)
	}

	k := klines[0]
	if c.now != nil && k.CloseTime > c.now() {
		return Candle{}, fmt.Errorf("klines: %s: candle not yet closed", source)
	}

	open, _ := strconv.ParseFloat(k.Open, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)

	return Candle{Open: open, Close: closePrice, CloseTime: k.CloseTime, Source: source}, nil
}

type coinGeckoOHLCRow [5]float64

// coinGeckoID maps a tracked coin to CoinGecko's id namespace.
func coinGeckoID(coin types.Coin) string {
	switch coin {
	case types.BTC:
		return "bitcoin"
	case types.ETH:
		return "ethereum"
	default:
		return string(coin)
	}
}

func (c *Chain) fromCoinGecko(ctx context.Context, coin types.Coin, startMs, endMs int64) (Candle, error) {
	var rows []coinGeckoOHLCRow
	resp, err := c.coinGecko.R().
		SetContext(ctx).
		SetPathParam("id", coinGeckoID(coin)).
		SetQueryParams(map[string]string{"vs_currency": "usd", "days": "1"}).
		SetResult(&rows).
		Get("/coins/{id}/ohlc")
	if err != nil {
		return Candle{}, fmt.Errorf("klines: coingecko: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Candle{}, fmt.Errorf("klines: coingecko: status %d: %s", resp.StatusCode(), resp.String())
	}

	// CoinGecko's granularity rarely lines up with a 15-minute window;
	// pick the bar whose timestamp falls inside [startMs, endMs) or, if
	// none does, the last bar returned, and mark the result approximate.
	var best coinGeckoOHLCRow
	found := false
	for _, row := range rows {
		t := int64(row[0])
		if t >= startMs && t < endMs {
			best = row
			found = true
			break
		}
	}
	if !found {
		if len(rows) == 0 {
			return Candle{}, fmt.Errorf("klines: coingecko: no data for %s", coin)
		}
		best = rows[len(rows)-1]
	}

	return Candle{
		Open:        best[1],
		Close:       best[4],
		CloseTime:   endMs,
		Source:      "coingecko",
		Approximate: true,
	}, nil
}
