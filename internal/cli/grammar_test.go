package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationAcceptsEveryUnit(t *testing.T) {
	cases := map[string]time.Duration{
		"500ms": 500 * time.Millisecond,
		"30s":   30 * time.Second,
		"5m":    5 * time.Minute,
		"2h":    2 * time.Hour,
		"1d":    24 * time.Hour,
	}
	for input, want := range cases {
		got, err := ParseDuration(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseDurationRejectsMissingUnit(t *testing.T) {
	_, err := ParseDuration("30")
	assert.Error(t, err)
}

func TestParseDurationRejectsZeroMagnitude(t *testing.T) {
	_, err := ParseDuration("0s")
	assert.Error(t, err)
}

func TestParseDurationRejectsEmpty(t *testing.T) {
	_, err := ParseDuration("")
	assert.Error(t, err)
}

func TestParseSourcesEmptyOrAllMeansEverySource(t *testing.T) {
	all := []string{"funding", "liquidations", "news", "orderbook", "polymarket", "tradeticks"}
	got, err := ParseSources("")
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = ParseSources("all")
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestParseSourcesDedupsAndSorts(t *testing.T) {
	got, err := ParseSources("news,orderbook,news,funding")
	require.NoError(t, err)
	assert.Equal(t, []string{"funding", "news", "orderbook"}, got)
}

func TestParseSourcesRejectsUnknown(t *testing.T) {
	_, err := ParseSources("orderbook,nonsense")
	assert.Error(t, err)
}
