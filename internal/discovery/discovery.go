// Package discovery resolves the set of currently tradeable 15-minute
// Up/Down markets from Polymarket's Gamma API. It is adapted from a
// market-maker's wide-spread market scanner, narrowed from that scanner's
// spread/volume ranking to this engine's simpler "which markets are open
// for the current window, for these coins" contract.
package discovery

import (
	"context"

	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// MarketInfo is one tradeable binary market: a coin's Up/Down contract pair
// for a single 15-minute window.
type MarketInfo struct {
	ConditionID   string
	Question      string
	Coin          types.Coin
	UpTokenID     string
	DownTokenID   string
	Volume24h     float64
	Liquidity     float64
	WindowStartMs int64
	WindowEndMs   int64
}

// Client resolves the currently open 15-minute markets for a set of coins.
type Client interface {
	// CurrentWindowMarkets returns the open market for each of coins whose
	// window contains nowMs, skipping any coin with no matching market.
	CurrentWindowMarkets(ctx context.Context, coins []types.Coin, nowMs int64) ([]MarketInfo, error)
}
