package settlement

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
)

// CLOBPriceREST is the default CLOBPriceClient, reading the midpoint
// price for a single outcome token from the CLOB's public REST API -
// the resolution chain's second step, tried after wallet positions and
// before the exchange-klines fallback. Grounded on the same resty client
// shape internal/execute uses for signed order submission, here used
// read-only and unauthenticated.
type CLOBPriceREST struct {
	http    *resty.Client
	limiter *ratelimit.TokenBucket
}

// NewCLOBPriceREST builds a price client against baseURL (the CLOB REST
// root), sharing limiter (typically a CLOBLimiter's Book bucket) with any
// other CLOB read traffic.
func NewCLOBPriceREST(baseURL string, limiter *ratelimit.TokenBucket) *CLOBPriceREST {
	return &CLOBPriceREST{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second).
			SetRetryCount(1),
		limiter: limiter,
	}
}

type midpointEnvelope struct {
	Mid string `json:"mid"`
}

// TokenPrice fetches the current midpoint price for tokenID. ok is false
// (with a nil error) when the CLOB has no active book for the token,
// which the resolver treats as "step not resolvable" rather than an
// error worth logging loudly.
func (c *CLOBPriceREST) TokenPrice(ctx context.Context, tokenID string) (float64, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, false, err
		}
	}

	var env midpointEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&env).
		Get("/midpoint")
	if err != nil {
		return 0, false, fmt.Errorf("settlement: clob midpoint: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, false, fmt.Errorf("settlement: clob midpoint: status %d: %s", resp.StatusCode(), resp.String())
	}

	price, err := strconv.ParseFloat(env.Mid, 64)
	if err != nil {
		return 0, false, fmt.Errorf("settlement: clob midpoint: parse %q: %w", env.Mid, err)
	}
	return price, true, nil
}
