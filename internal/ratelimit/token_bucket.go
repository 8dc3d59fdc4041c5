// Package ratelimit implements a continuously-refilling token bucket, used
// by the Polymarket REST clients in this engine (CLOB order submission and
// midpoint reads, Gamma market discovery, and the Data API) to stay under
// each provider's published rate limits without bursting in 10s windows.
// The kline and news clients do not use it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token-bucket rate limiter with continuous (sub-second)
// refill. Callers block in Wait until a token is available or ctx is done.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

// New creates a rate limiter with the given burst capacity and refill rate.
func New(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// CLOBLimiter groups the token buckets for Polymarket CLOB endpoint
// categories, tuned to its published 10-second window limits.
type CLOBLimiter struct {
	Order  *TokenBucket // POST /orders
	Cancel *TokenBucket // DELETE /orders
	Book   *TokenBucket // GET /book
}

// NewCLOBLimiter builds a CLOBLimiter at Polymarket's published limits.
func NewCLOBLimiter() *CLOBLimiter {
	return &CLOBLimiter{
		Order:  New(350, 50),
		Cancel: New(300, 30),
		Book:   New(150, 15),
	}
}
