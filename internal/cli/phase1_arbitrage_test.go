package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/discovery"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDiscoveryClient struct {
	markets []discovery.MarketInfo
}

func (s *stubDiscoveryClient) CurrentWindowMarkets(ctx context.Context, coins []types.Coin, nowMs int64) ([]discovery.MarketInfo, error) {
	return s.markets, nil
}

func TestLiquidityFilterClientDropsMarketsBelowThreshold(t *testing.T) {
	stub := &stubDiscoveryClient{markets: []discovery.MarketInfo{
		{ConditionID: "thin", Liquidity: 999},
		{ConditionID: "thick", Liquidity: 1000},
		{ConditionID: "thickest", Liquidity: 50000},
	}}
	client := &liquidityFilterClient{Client: stub, minLiquidity: phase1MinLiquidityUSD}

	markets, err := client.CurrentWindowMarkets(context.Background(), types.AllCoins, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ConditionID)
	}
	assert.Equal(t, []string{"thick", "thickest"}, ids)
}

func TestRunPhase1ArbitrageRejectsInvalidMode(t *testing.T) {
	code := RunPhase1Arbitrage([]string{"--mode", "nonsense"}, "/nonexistent/config.yaml", testLogger())
	assert.Equal(t, ExitConfigError, code)
}

func TestRunPhase1ArbitrageRejectsBadDuration(t *testing.T) {
	code := RunPhase1Arbitrage([]string{"--duration", "30"}, "/nonexistent/config.yaml", testLogger())
	assert.Equal(t, ExitConfigError, code)
}
