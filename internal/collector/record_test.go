package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEncodesPayloadAsJSON(t *testing.T) {
	r := Record{Kind: KindFunding, TimestampMs: 1000, Payload: FundingRecord{Symbol: "BTCUSDT", FundingRate: 0.0001}}
	payload, err := marshal(r)
	require.NoError(t, err)
	assert.Contains(t, payload, `"symbol":"BTCUSDT"`)
	assert.Contains(t, payload, `"funding_rate":0.0001`)
}

func TestAllSourcesMatchesKindConstants(t *testing.T) {
	assert.Equal(t, []string{"orderbook", "funding", "liquidations", "tradeticks", "polymarket", "news"}, AllSources)
}
