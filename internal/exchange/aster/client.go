package aster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/infra"
)

const recvWindowMS = 5000

// Client handles Aster REST API communication. All signed calls run
// through per-category rate limiters and a shared circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	signer  *Signer
	http    *http.Client
	breaker *infra.Breaker
	now     func() time.Time
}

// NewClient creates a REST client for one credential pair.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		signer:  NewSigner(apiSecret),
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: infra.NewBreaker("aster-rest"),
		now:     time.Now,
	}
}

// Close wipes the signing secret.
func (c *Client) Close() { c.signer.Wipe() }

// request performs one REST call. Signed requests get recvWindow,
// timestamp and signature appended to the query.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, signed bool, limiter *infra.RateLimiter) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, exchange.NewError(exchange.KindOther, "aster", "", "circuit breaker open")
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, exchange.WrapError(exchange.KindOther, "aster", err)
		}
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("recvWindow", strconv.Itoa(recvWindowMS))
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("signature", c.signer.Sign(params.Encode()))
	}

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, exchange.WrapError(exchange.KindOther, "aster", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("User-Agent", infra.GetUserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.Record(false)
		return nil, exchange.WrapError(exchange.KindOther, "aster", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.Record(false)
		return nil, exchange.WrapError(exchange.KindOther, "aster", err)
	}

	if resp.StatusCode >= 400 {
		// Venue-level rejections are not transport faults; only
		// throttling and server errors count against the breaker.
		venueErr := classifyError(resp.StatusCode, body)
		if exchange.IsRateLimited(venueErr) || resp.StatusCode >= 500 {
			c.breaker.Record(false)
		} else {
			c.breaker.Record(true)
		}
		return nil, venueErr
	}

	c.breaker.Record(true)
	return body, nil
}

// classifyError maps venue error codes onto the typed error kinds the
// coordinator acts on.
func classifyError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		return exchange.NewError(exchange.KindOther, "aster", strconv.Itoa(status), strings.TrimSpace(string(body)))
	}

	kind := exchange.KindOther
	switch apiErr.Code {
	case -2011, -2013:
		// Unknown order / order does not exist.
		kind = exchange.KindAlreadyGone
	case -1003, -1015:
		kind = exchange.KindRateLimited
	case -2018, -2019, -4164:
		kind = exchange.KindInsufficientBalance
	default:
		if status == http.StatusTooManyRequests {
			kind = exchange.KindRateLimited
		}
	}
	return exchange.NewError(kind, "aster", strconv.Itoa(apiErr.Code), apiErr.Msg)
}

// PlaceOrder submits an order with the given parameters.
func (c *Client) PlaceOrder(ctx context.Context, params url.Values) (*wireOrder, error) {
	body, err := c.request(ctx, http.MethodPost, "/fapi/v1/order", params, true, infra.GetAsterOrderLimiter())
	if err != nil {
		return nil, err
	}
	var order wireOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, exchange.WrapError(exchange.KindOther, "aster", fmt.Errorf("decode order response: %w", err))
	}
	return &order, nil
}

// CancelOrder cancels one order by id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	_, err := c.request(ctx, http.MethodDelete, "/fapi/v1/order", params, true, infra.GetAsterOrderLimiter())
	return err
}

// CancelAllOrders cancels every open order for symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := c.request(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true, infra.GetAsterOrderLimiter())
	return err
}

// OpenOrders lists the resting orders for symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]wireOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/openOrders", params, true, infra.GetAsterOrderLimiter())
	if err != nil {
		return nil, err
	}
	var orders []wireOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, exchange.WrapError(exchange.KindOther, "aster", fmt.Errorf("decode open orders: %w", err))
	}
	return orders, nil
}

// Account fetches the account snapshot.
func (c *Client) Account(ctx context.Context) (*wireAccount, error) {
	body, err := c.request(ctx, http.MethodGet, "/fapi/v2/account", nil, true, infra.GetAsterAccountLimiter())
	if err != nil {
		return nil, err
	}
	var acct wireAccount
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, exchange.WrapError(exchange.KindOther, "aster", fmt.Errorf("decode account: %w", err))
	}
	return &acct, nil
}

// ExchangeInfo fetches symbol metadata including price/quantity quanta.
func (c *Client) ExchangeInfo(ctx context.Context) (*wireExchangeInfo, error) {
	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false, infra.GetAsterMarketLimiter())
	if err != nil {
		return nil, err
	}
	var info wireExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, exchange.WrapError(exchange.KindOther, "aster", fmt.Errorf("decode exchange info: %w", err))
	}
	return &info, nil
}

// NewListenKey opens a user-data stream and returns its key.
func (c *Client) NewListenKey(ctx context.Context) (string, error) {
	body, err := c.request(ctx, http.MethodPost, "/fapi/v1/listenKey", nil, false, infra.GetAsterAccountLimiter())
	if err != nil {
		return "", err
	}
	var key wireListenKey
	if err := json.Unmarshal(body, &key); err != nil {
		return "", exchange.WrapError(exchange.KindOther, "aster", fmt.Errorf("decode listen key: %w", err))
	}
	return key.ListenKey, nil
}

// KeepAliveListenKey extends the user-data stream lifetime.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPut, "/fapi/v1/listenKey", nil, false, infra.GetAsterAccountLimiter())
	return err
}
