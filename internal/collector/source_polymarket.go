package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// DefaultOddsPollInterval is how often PolymarketSource re-checks
// discovery for the current window's markets and samples their books.
const DefaultOddsPollInterval = 5 * time.Second

// PolymarketSource is the dedicated Up/Down odds producer the original
// implementation keeps as its own file (odds_collector.rs), distinct from
// the order-book producer even though both ultimately read a book: this
// one polls Gamma discovery for the coins it tracks and samples the
// CLOB book for each, publishing one OddsRecord per coin per poll.
type PolymarketSource struct {
	Discovery    discovery.Client
	Coins        []types.Coin
	WSMarketURL  string
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (s *PolymarketSource) Run(ctx context.Context, pub Publisher) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultOddsPollInterval
	}

	feeds := make(map[string]*market.BookFeed) // condition ID -> feed
	cancels := make(map[string]context.CancelFunc)
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		markets, err := s.Discovery.CurrentWindowMarkets(ctx, s.Coins, time.Now().UnixMilli())
		if err != nil {
			s.Logger.Warn("polymarket odds source: discovery failed", "error", err)
		} else {
			s.reconcileFeeds(ctx, markets, feeds, cancels)
			s.sampleBooks(markets, feeds, pub)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *PolymarketSource) reconcileFeeds(ctx context.Context, markets []discovery.MarketInfo, feeds map[string]*market.BookFeed, cancels map[string]context.CancelFunc) {
	desired := make(map[string]discovery.MarketInfo, len(markets))
	for _, m := range markets {
		desired[m.ConditionID] = m
	}
	for id, cancel := range cancels {
		if _, ok := desired[id]; !ok {
			cancel()
			delete(feeds, id)
			delete(cancels, id)
		}
	}
	for id, info := range desired {
		if _, ok := feeds[id]; ok {
			continue
		}
		feedCtx, cancel := context.WithCancel(ctx)
		feed := market.NewBookFeed(s.WSMarketURL, []string{info.UpTokenID, info.DownTokenID}, s.Logger)
		feeds[id] = feed
		cancels[id] = cancel
		go func() {
			if err := feed.Run(feedCtx); err != nil && feedCtx.Err() == nil {
				s.Logger.Warn("polymarket odds book feed error", "condition_id", id, "error", err)
			}
		}()
	}
}

func (s *PolymarketSource) sampleBooks(markets []discovery.MarketInfo, feeds map[string]*market.BookFeed, pub Publisher) {
	for _, m := range markets {
		feed, ok := feeds[m.ConditionID]
		if !ok {
			continue
		}
		up, down, ok := feed.GetBooks(m.UpTokenID, m.DownTokenID)
		if !ok {
			continue
		}
		rec := OddsRecord{ConditionID: m.ConditionID, Coin: string(m.Coin)}
		if bid, ok := up.BestBid(); ok {
			rec.UpBid = bid.InexactFloat64()
		}
		if ask, ok := up.BestAsk(); ok {
			rec.UpAsk = ask.InexactFloat64()
		}
		if bid, ok := down.BestBid(); ok {
			rec.DownBid = bid.InexactFloat64()
		}
		if ask, ok := down.BestAsk(); ok {
			rec.DownAsk = ask.InexactFloat64()
		}
		pub.Publish(Record{Kind: KindPolymarket, TimestampMs: time.Now().UnixMilli(), Payload: rec})
	}
}
