// Package dataapi wraps the Polymarket Data API's wallet-position lookup,
// the first link in the settlement resolver's fallback chain. It is
// grounded on the same resty client shape the execution layer uses for the
// CLOB REST client: base URL, fixed timeout, JSON decode into a typed
// result struct.
package dataapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
)

// Position is one wallet's holding in a single outcome token.
type Position struct {
	TokenID    string
	CurPrice   float64
	Redeemable bool
}

// Resolved reports whether a position has reached a terminal settlement
// state per the resolver's rule: redeemable, or the price has converged to
// one of the binary extremes.
func (p Position) Resolved() bool {
	return p.Redeemable || p.CurPrice >= 0.95 || p.CurPrice <= 0.05
}

// Won reports the winning side under the resolver's convergence rule.
func (p Position) Won() bool {
	return p.CurPrice >= 0.95
}

// Client fetches wallet positions from the Polymarket Data API.
type Client interface {
	Positions(ctx context.Context, wallet string, tokenIDs []string) ([]Position, error)
}

// RESTClient is the default resty-backed Client implementation.
type RESTClient struct {
	http    *resty.Client
	limiter *ratelimit.TokenBucket
}

// NewRESTClient builds a Data API client against baseURL, rate-limited by
// limiter (shared with the rest of the read-only HTTP surface is fine,
// since positions are low-frequency polling, not order-book streaming).
func NewRESTClient(baseURL string, limiter *ratelimit.TokenBucket) *RESTClient {
	return &RESTClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(300 * time.Millisecond),
		limiter: limiter,
	}
}

type positionEnvelope struct {
	Asset      string  `json:"asset"`
	CurPrice   string  `json:"curPrice"`
	Redeemable bool    `json:"redeemable"`
}

// Positions fetches the wallet's current holdings in the given token IDs.
// Token IDs the wallet holds no position in are simply absent from the
// result, not an error.
func (c *RESTClient) Positions(ctx context.Context, wallet string, tokenIDs []string) ([]Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var envelopes []positionEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user", wallet).
		SetResult(&envelopes).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("dataapi: get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dataapi: get positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	wanted := make(map[string]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		wanted[id] = true
	}

	out := make([]Position, 0, len(tokenIDs))
	for _, e := range envelopes {
		if !wanted[e.Asset] {
			continue
		}
		price, _ := strconv.ParseFloat(e.CurPrice, 64)
		out = append(out, Position{TokenID: e.Asset, CurPrice: price, Redeemable: e.Redeemable})
	}
	return out, nil
}
