package execute

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-resty/resty/v2"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/internal/ratelimit"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// LiveLimits are the hard, non-negotiable caps the live executor checks
// before every submission (§4.10.2). Phase-1 deployment pins MaxOrderValue
// at $500 per trade, well under the $100,000 paper session balance used
// for pre-promotion validation runs. Any single reject trips the circuit
// breaker permanently; there is no cooldown.
type LiveLimits struct {
	MaxOrderValue     money.Money
	MaxDailyVolume    money.Money
	MinBalanceReserve money.Money
	MaxOrderSize      money.Money
}

// Credentials holds the L2 API key triplet returned by the CLOB's
// derive-api-key endpoint, used to HMAC-sign trading requests.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// LiveExecutor places real, wallet-signed orders against the Polymarket
// CLOB. It enforces LiveLimits before submitting anything; once any check
// rejects a submission the breaker latches open for the life of the
// process — there is no operator-free recovery.
type LiveExecutor struct {
	httpClient *resty.Client
	baseURL    string
	limiter    *ratelimit.CLOBLimiter
	limits     LiveLimits
	logger     *slog.Logger

	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	creds      Credentials

	mu          sync.Mutex
	realizedPnL money.Money
	dailyVolume money.Money
	killActive  bool
}

// NewLiveExecutor builds a live executor signing with privateKeyHex against
// baseURL (the CLOB REST root), enforcing limits.
func NewLiveExecutor(baseURL, privateKeyHex string, chainID int64, creds Credentials, limits LiveLimits, logger *slog.Logger) (*LiveExecutor, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("execute: parse private key: %w", err)
	}

	return &LiveExecutor{
		httpClient: resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		baseURL:    baseURL,
		limiter:    ratelimit.NewCLOBLimiter(),
		limits:     limits,
		logger:     logger.With("component", "live_executor"),
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    big.NewInt(chainID),
		creds:      creds,
	}, nil
}

type orderRequest struct {
	TokenID  string `json:"token_id"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	Side     string `json:"side"`
	OrderType string `json:"order_type"`
	Signature string `json:"signature"`
	Salt      string `json:"salt"`
}

type orderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderID"`
	Status      string `json:"status"` // "matched", "live", "unmatched"
	FilledSize  string `json:"filled_size"`
	ErrorMsg    string `json:"errorMsg"`
}

// SubmitFOK signs and submits a fill-or-kill limit order.
func (l *LiveExecutor) SubmitFOK(ctx context.Context, tokenID string, side types.Side, limitPrice, size money.Money) (Fill, error) {
	if err := l.CheckCircuitBreaker(); err != nil {
		return Fill{}, err
	}
	if err := l.limiter.Order.Wait(ctx); err != nil {
		return Fill{}, fmt.Errorf("execute: rate limit wait: %w", err)
	}

	orderValue := limitPrice.Mul(size)
	if err := l.checkLimits(ctx, orderValue, size); err != nil {
		return Fill{}, err
	}

	req := orderRequest{
		TokenID:   tokenID,
		Price:     limitPrice.String(),
		Size:      size.String(),
		Side:      string(side),
		OrderType: "FOK",
		Salt:      strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	sig, err := l.signOrder(req)
	if err != nil {
		return Fill{}, fmt.Errorf("execute: sign order: %w", err)
	}
	req.Signature = sig

	var resp orderResponse
	if err := l.postSigned(ctx, "/order", req, &resp); err != nil {
		return Fill{}, err
	}

	if !resp.Success || resp.Status == "unmatched" {
		l.logger.Debug("FOK order not filled", "token_id", tokenID, "status", resp.Status, "error", resp.ErrorMsg)
		return Fill{TokenID: tokenID, Side: side, RequestedSize: size, Filled: false}, nil
	}

	filled, err := money.NewFromString(resp.FilledSize)
	if err != nil {
		filled = size
	}

	l.mu.Lock()
	l.dailyVolume = l.dailyVolume.Add(orderValue)
	l.mu.Unlock()

	return Fill{
		TokenID:       tokenID,
		Side:          side,
		RequestedSize: size,
		FilledSize:    filled,
		Price:         limitPrice,
		Filled:        true,
	}, nil
}

// checkLimits runs the four pre-submission checks of §4.10.2: order value,
// order size, projected daily volume, and the post-trade balance reserve
// floor. Any reject trips the circuit breaker permanently.
func (l *LiveExecutor) checkLimits(ctx context.Context, orderValue, size money.Money) error {
	if orderValue.GreaterThan(l.limits.MaxOrderValue) {
		l.trip("order value exceeds max_order_value")
		return fmt.Errorf("execute: order value %s exceeds max %s", orderValue, l.limits.MaxOrderValue)
	}
	if size.GreaterThan(l.limits.MaxOrderSize) {
		l.trip("order size exceeds max_order_size")
		return fmt.Errorf("execute: order size %s exceeds max %s", size, l.limits.MaxOrderSize)
	}

	l.mu.Lock()
	projectedVolume := l.dailyVolume.Add(orderValue)
	l.mu.Unlock()
	if projectedVolume.GreaterThan(l.limits.MaxDailyVolume) {
		l.trip("daily volume would exceed max_daily_volume")
		return fmt.Errorf("execute: daily volume %s would exceed max %s", projectedVolume, l.limits.MaxDailyVolume)
	}

	balance, err := l.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("execute: fetch balance: %w", err)
	}
	if balance.Sub(orderValue).LessThan(l.limits.MinBalanceReserve) {
		l.trip("balance would fall below min_balance_reserve")
		return fmt.Errorf("execute: balance %s minus order value %s would fall below reserve %s", balance, orderValue, l.limits.MinBalanceReserve)
	}
	return nil
}

// SubmitMarketSell signs and submits an immediate market sell. Market sells
// are unwinds of an already-taken position, so they skip the order-value/
// balance-reserve checks (there is no limit price to value them against
// ahead of the fill) but still respect the latched circuit breaker.
func (l *LiveExecutor) SubmitMarketSell(ctx context.Context, tokenID string, size money.Money) (Fill, error) {
	if err := l.CheckCircuitBreaker(); err != nil {
		return Fill{}, err
	}
	if err := l.limiter.Order.Wait(ctx); err != nil {
		return Fill{}, fmt.Errorf("execute: rate limit wait: %w", err)
	}

	req := orderRequest{
		TokenID:   tokenID,
		Size:      size.String(),
		Side:      string(types.Sell),
		OrderType: "FOK",
		Salt:      strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	sig, err := l.signOrder(req)
	if err != nil {
		return Fill{}, fmt.Errorf("execute: sign unwind order: %w", err)
	}
	req.Signature = sig

	var resp orderResponse
	if err := l.postSigned(ctx, "/order", req, &resp); err != nil {
		return Fill{}, err
	}
	if !resp.Success {
		return Fill{TokenID: tokenID, Side: types.Sell, RequestedSize: size, Filled: false}, nil
	}

	price, _ := money.NewFromString(resp.FilledSize)

	l.mu.Lock()
	l.dailyVolume = l.dailyVolume.Add(price.Mul(size))
	l.mu.Unlock()

	return Fill{TokenID: tokenID, Side: types.Sell, RequestedSize: size, FilledSize: size, Price: price, Filled: true}, nil
}

// GetBalance fetches the trading wallet's current USDC balance.
func (l *LiveExecutor) GetBalance(ctx context.Context) (money.Money, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	if err := l.getSigned(ctx, "/balance", &out); err != nil {
		return money.Zero, err
	}
	return money.NewFromString(out.Balance)
}

// CheckCircuitBreaker reports whether trading is currently permitted. Once
// tripped the breaker is a one-way latch: nothing but a process restart
// clears it.
func (l *LiveExecutor) CheckCircuitBreaker() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.killActive {
		return ErrCircuitBreakerOpen
	}
	return nil
}

// RecordPnL adds pnl to the running realized-P&L total the runner reads
// for dashboards. It has no bearing on the circuit breaker: only a rejected
// submission trips that.
func (l *LiveExecutor) RecordPnL(pnl money.Money) {
	l.mu.Lock()
	l.realizedPnL = l.realizedPnL.Add(pnl)
	l.mu.Unlock()
}

// trip permanently opens the circuit breaker. Idempotent: a second trip
// while already open is a no-op.
func (l *LiveExecutor) trip(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.killActive {
		return
	}
	l.killActive = true
	l.logger.Warn("circuit breaker tripped; refusing further submissions until process restart", "reason", reason)
}

func (l *LiveExecutor) signOrder(req orderRequest) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Order": {
				{Name: "tokenId", Type: "string"},
				{Name: "price", Type: "string"},
				{Name: "size", Type: "string"},
				{Name: "side", Type: "string"},
				{Name: "salt", Type: "string"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:    "PolymarketOrderDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(l.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"tokenId": req.TokenID,
			"price":   req.Price,
			"size":    req.Size,
			"side":    req.Side,
			"salt":    req.Salt,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, l.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func (l *LiveExecutor) l2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	mac, err := l.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"POLY_ADDRESS":    l.address.Hex(),
		"POLY_SIGNATURE":  mac,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    l.creds.APIKey,
		"POLY_PASSPHRASE": l.creds.Passphrase,
	}, nil
}

func (l *LiveExecutor) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding}
	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(l.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (l *LiveExecutor) postSigned(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("execute: marshal request: %w", err)
	}
	headers, err := l.l2Headers("POST", path, string(raw))
	if err != nil {
		return fmt.Errorf("execute: build auth headers: %w", err)
	}

	resp, err := l.httpClient.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(raw).
		SetResult(out).
		Post(path)
	if err != nil {
		return fmt.Errorf("execute: post %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("execute: post %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

func (l *LiveExecutor) getSigned(ctx context.Context, path string, out any) error {
	headers, err := l.l2Headers("GET", path, "")
	if err != nil {
		return fmt.Errorf("execute: build auth headers: %w", err)
	}
	resp, err := l.httpClient.R().SetContext(ctx).SetHeaders(headers).SetResult(out).Get(path)
	if err != nil {
		return fmt.Errorf("execute: get %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("execute: get %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}
