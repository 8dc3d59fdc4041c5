package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/window"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// gammaMarket is the JSON shape returned by the Gamma API for a single
// binary market.
type gammaMarket struct {
	ConditionID     string  `json:"conditionId"`
	Question        string  `json:"question"`
	Slug            string  `json:"slug"`
	Active          bool    `json:"active"`
	Closed          bool    `json:"closed"`
	AcceptingOrders bool    `json:"acceptingOrders"`
	EnableOrderBook bool    `json:"enableOrderBook"`
	EndDate         string  `json:"endDate"`
	Liquidity       string  `json:"liquidity"`
	Volume24hr      float64 `json:"volume24hr"`
	Outcomes        string  `json:"outcomes"`
	ClobTokenIds    string  `json:"clobTokenIds"`
}

// GammaClient polls Polymarket's Gamma API for the currently open 15-minute
// Up/Down markets, rate-limited to the API's published 30 requests/minute.
// Adapted from a market-maker's wide-spread scanner's pagination loop,
// narrowed to this engine's coin-slug matching instead of spread ranking.
type GammaClient struct {
	httpClient *resty.Client
	limiter    *ratelimit.TokenBucket
	logger     *slog.Logger
}

// NewGammaClient creates a client pointed at baseURL (the Gamma API root).
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &GammaClient{
		httpClient: client,
		limiter:    ratelimit.New(30, 30.0/60.0),
		logger:     logger.With("component", "gamma_client"),
	}
}

// CurrentWindowMarkets implements Client: fetches active markets, filters to
// ones matching a coin's slug prefix and still inside the window containing
// nowMs, and returns one MarketInfo per matched coin.
func (c *GammaClient) CurrentWindowMarkets(ctx context.Context, coins []types.Coin, nowMs int64) ([]MarketInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	markets, err := c.fetchActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: fetch markets: %w", err)
	}

	windowStart := window.Start(nowMs)
	windowEnd := windowStart + window.Size

	wanted := make(map[types.Coin]bool, len(coins))
	for _, coin := range coins {
		wanted[coin] = true
	}

	var out []MarketInfo
	seen := make(map[types.Coin]bool, len(coins))
	for _, m := range markets {
		if !m.Active || m.Closed || !m.AcceptingOrders || !m.EnableOrderBook {
			continue
		}

		coin, ok := matchCoin(m.Slug, wanted)
		if !ok {
			continue
		}

		endMs, err := parseEndDateMs(m.EndDate)
		if err != nil || endMs <= windowStart || endMs > windowEnd || seen[coin] {
			continue
		}

		up, down, ok := parseTokenPair(m.ClobTokenIds)
		if !ok {
			c.logger.Warn("market missing a usable token pair, skipping", "slug", m.Slug)
			continue
		}

		liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)

		seen[coin] = true
		out = append(out, MarketInfo{
			ConditionID:   m.ConditionID,
			Question:      m.Question,
			Coin:          coin,
			UpTokenID:     up,
			DownTokenID:   down,
			Volume24h:     m.Volume24hr,
			Liquidity:     liquidity,
			WindowStartMs: windowStart,
			WindowEndMs:   windowEnd,
		})
	}

	return out, nil
}

func (c *GammaClient) fetchActiveMarkets(ctx context.Context) ([]gammaMarket, error) {
	var all []gammaMarket
	offset, limit := 0, 100

	for {
		var page []gammaMarket
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":  strconv.Itoa(limit),
				"offset": strconv.Itoa(offset),
				"active": "true",
				"closed": "false",
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
		}

		all = append(all, page...)
		if len(page) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

// matchCoin maps a Gamma market slug to one of the wanted coins via the
// coin's slug prefix (e.g. "bitcoin-up-or-down-...").
func matchCoin(slug string, wanted map[types.Coin]bool) (types.Coin, bool) {
	slugLower := strings.ToLower(slug)
	for coin := range wanted {
		if strings.HasPrefix(slugLower, coin.SlugPrefix()) {
			return coin, true
		}
	}
	return "", false
}

func parseEndDateMs(endDate string) (int64, error) {
	t, err := time.Parse(time.RFC3339, endDate)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// parseTokenPair decodes Gamma's JSON-array-as-string clobTokenIds field
// ("[\"123\",\"456\"]"), returning (up, down) in the order Gamma lists
// outcomes: index 0 is Up/Yes, index 1 is Down/No.
func parseTokenPair(raw string) (up, down string, ok bool) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || len(ids) < 2 {
		return "", "", false
	}
	return ids[0], ids[1], true
}
