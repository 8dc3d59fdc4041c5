package dataapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/dataapi"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
)

func TestRESTClientPositionsFiltersToRequestedTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0xwallet", r.URL.Query().Get("user"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"asset":"yes-token","curPrice":"0.97","redeemable":false},
			{"asset":"irrelevant-token","curPrice":"0.50","redeemable":false}
		]`))
	}))
	defer server.Close()

	client := dataapi.NewRESTClient(server.URL, ratelimit.New(10, 10))
	positions, err := client.Positions(context.Background(), "0xwallet", []string{"yes-token"})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "yes-token", positions[0].TokenID)
	assert.InDelta(t, 0.97, positions[0].CurPrice, 1e-9)
	assert.True(t, positions[0].Won())
	assert.True(t, positions[0].Resolved())
}

func TestPositionResolvedOnRedeemableOrExtremePrice(t *testing.T) {
	assert.True(t, dataapi.Position{Redeemable: true}.Resolved())
	assert.True(t, dataapi.Position{CurPrice: 0.02}.Resolved())
	assert.False(t, dataapi.Position{CurPrice: 0.5}.Resolved())
}
