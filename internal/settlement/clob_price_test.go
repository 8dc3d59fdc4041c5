package settlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
)

func TestCLOBPriceRESTParsesMidpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mid":"0.97"}`))
	}))
	defer server.Close()

	client := NewCLOBPriceREST(server.URL, ratelimit.New(10, 10))
	price, ok, err := client.TokenPrice(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.97, price, 1e-9)
}

func TestCLOBPriceRESTNotFoundIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewCLOBPriceREST(server.URL, ratelimit.New(10, 10))
	_, ok, err := client.TokenPrice(context.Background(), "tok-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
