package execute_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/execute"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

const testPrivateKeyHex = "43ed173fbf38d64540bedd61f91789e6fb9a266a8c9f3414e88aa830592d1f32"

func testCredentials() execute.Credentials {
	return execute.Credentials{APIKey: "key", Secret: "dGVzdC1zZWNyZXQtdmFsdWU=", Passphrase: "pass"}
}

// newTestLiveExecutor builds a LiveExecutor against an httptest server that
// always fills orders at the requested price/size and reports balance.
func newTestLiveExecutor(t *testing.T, balance string, limits execute.LiveLimits) (*execute.LiveExecutor, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"balance": balance})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Size string `json:"size"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"orderID":     "1",
			"status":      "matched",
			"filled_size": req.Size,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	exec, err := execute.NewLiveExecutor(srv.URL, testPrivateKeyHex, 137, testCredentials(), limits, testLogger())
	require.NoError(t, err)
	return exec, srv
}

func TestLiveExecutorRejectsOrderValueAboveMax(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(10),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10_000),
	})

	_, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.Error(t, err)
	assert.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)
}

func TestLiveExecutorRejectsOrderSizeAboveMax(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(10_000),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10),
	})

	_, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.Error(t, err)
	assert.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)
}

func TestLiveExecutorRejectsWhenBalanceBelowReserve(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100", execute.LiveLimits{
		MaxOrderValue:     money.New(10_000),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(99),
		MaxOrderSize:      money.New(10_000),
	})

	// order value 50, balance 100, reserve 99: 100-50=50 < 99, must reject.
	_, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.Error(t, err)
	assert.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)
}

func TestLiveExecutorRejectsDailyVolumeOverflow(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(10_000),
		MaxDailyVolume:    money.New(60),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10_000),
	})

	fill, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.NoError(t, err)
	assert.True(t, fill.Filled)

	_, err = exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.Error(t, err)
	assert.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)
}

func TestLiveExecutorFillWithinLimitsKeepsBreakerClosed(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(10_000),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10_000),
	})

	fill, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.NoError(t, err)
	assert.True(t, fill.Filled)
	require.NoError(t, exec.CheckCircuitBreaker())
}

func TestLiveExecutorCircuitBreakerIsOneWayLatch(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(1),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10_000),
	})

	_, err := exec.SubmitFOK(t.Context(), "yes", types.Buy, money.New(0.50), money.New(100))
	require.Error(t, err)
	require.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)

	// A subsequent, otherwise-valid order must still fail fast: there is no
	// cooldown or time-based recovery, only a fresh process clears this.
	_, err = exec.SubmitMarketSell(t.Context(), "yes", money.New(1))
	assert.ErrorIs(t, err, execute.ErrCircuitBreakerOpen)
	assert.ErrorIs(t, exec.CheckCircuitBreaker(), execute.ErrCircuitBreakerOpen)
}

func TestLiveExecutorRecordPnLDoesNotTripBreaker(t *testing.T) {
	exec, _ := newTestLiveExecutor(t, "100000", execute.LiveLimits{
		MaxOrderValue:     money.New(10_000),
		MaxDailyVolume:    money.New(10_000),
		MinBalanceReserve: money.New(0),
		MaxOrderSize:      money.New(10_000),
	})

	exec.RecordPnL(money.New(-5_000))
	assert.NoError(t, exec.CheckCircuitBreaker())
}
