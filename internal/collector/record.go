// Package collector runs the collect-signals orchestrator: one producer
// goroutine per configured source (order book, funding, liquidations, trade
// ticks + CVD, Polymarket odds, news) feeding a shared bounded channel, and
// one sink goroutine batching records into the store. It is grounded on
// yoghaf-market-indikator's internal/bus fan-out (Subscribe/Publish over
// buffered channels with a non-blocking send) and internal/ingest's
// one-goroutine-per-external-source shape, generalized from a single
// trade bus to this spec's six named record kinds, combined with the
// teacher's internal/api/server.go HTTP server shape for the health
// dashboard.
package collector

import (
	"encoding/json"
	"time"
)

// Kind identifies which of the six collector record streams a Record
// belongs to.
type Kind string

const (
	KindOrderBook    Kind = "orderbook"
	KindFunding      Kind = "funding"
	KindLiquidation  Kind = "liquidations"
	KindTradeTick    Kind = "tradeticks"
	KindPolymarket   Kind = "polymarket"
	KindNews         Kind = "news"
)

// AllSources enumerates every source name the CLI's sources grammar
// accepts, in canonical order.
var AllSources = []string{
	string(KindOrderBook),
	string(KindFunding),
	string(KindLiquidation),
	string(KindTradeTick),
	string(KindPolymarket),
	string(KindNews),
}

// Record is one observation from any producer, tagged by kind and
// timestamp. Payload is marshaled to JSON before it reaches the store, so
// any producer-specific struct works as long as it's JSON-serializable.
type Record struct {
	Kind        Kind
	TimestampMs int64
	Payload     any
}

// OrderBookRecord is a top-of-book snapshot for one Binance futures symbol.
type OrderBookRecord struct {
	Symbol   string  `json:"symbol"`
	BestBid  float64 `json:"best_bid"`
	BidQty   float64 `json:"bid_qty"`
	BestAsk  float64 `json:"best_ask"`
	AskQty   float64 `json:"ask_qty"`
}

// FundingRecord is one funding-rate/mark-price tick.
type FundingRecord struct {
	Symbol       string  `json:"symbol"`
	MarkPrice    float64 `json:"mark_price"`
	IndexPrice   float64 `json:"index_price"`
	FundingRate  float64 `json:"funding_rate"`
	NextFundingAt int64  `json:"next_funding_at_ms"`
}

// LiquidationRecord is one forced-liquidation order print.
type LiquidationRecord struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"` // BUY or SELL
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	Status     string  `json:"status"`
}

// TradeTickRecord is one aggregated trade print plus the running CVD
// (cumulative volume delta) for its symbol at the time of the print.
type TradeTickRecord struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	IsBuyerMaker bool `json:"is_buyer_maker"` // true => aggressive sell
	CVD      float64 `json:"cvd"`
}

// OddsRecord is a Polymarket Up/Down market's top-of-book snapshot.
type OddsRecord struct {
	ConditionID string  `json:"condition_id"`
	Coin        string  `json:"coin"`
	UpBid       float64 `json:"up_bid"`
	UpAsk       float64 `json:"up_ask"`
	DownBid     float64 `json:"down_bid"`
	DownAsk     float64 `json:"down_ask"`
}

// NewsRecord is one CryptoPanic news item.
type NewsRecord struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	PublishedAt string `json:"published_at"`
	Currencies []string `json:"currencies"`
}

// marshal encodes a record's payload to the JSON string the store persists.
func marshal(r Record) (string, error) {
	return marshalJSON(r.Payload)
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
