package market_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/market"
)

func TestBookFeedGetBooksUnknownToken(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := market.NewBookFeed("wss://example.invalid/ws", []string{"yes-tok", "no-tok"}, logger)

	yes, no, ok := f.GetBooks("yes-tok", "no-tok")
	assert.True(t, ok)
	assert.NotNil(t, yes)
	assert.NotNil(t, no)

	_, _, ok2 := f.GetBooks("yes-tok", "missing-tok")
	assert.False(t, ok2)
}

func TestBookFeedWaitForReadyTimesOut(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := market.NewBookFeed("wss://example.invalid/ws", []string{"yes-tok", "no-tok"}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := f.WaitForReady(ctx, 20*time.Millisecond)
	assert.Error(t, err)
}

func TestBookFeedStatusInitiallyNotReady(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := market.NewBookFeed("wss://example.invalid/ws", []string{"yes-tok"}, logger)
	assert.False(t, f.Status().IsReady)
}
