package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// Client is the REST client for the Kalshi trade API. It owns the wire
// format: cents convert to [0,1] probabilities on the way in, probabilities
// convert back to cents on the way out. It satisfies engine.Exchange.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// NewClient creates a Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier.
func NewClient(baseURL, apiKeyID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// GetMarkets returns one page of markets, optionally filtered by status,
// along with the cursor for the next page.
func (c *Client) GetMarkets(ctx context.Context, status, cursor string, limit int) ([]domain.Market, string, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/markets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("kalshi: get markets: %w", err)
	}

	var resp struct {
		Markets []marketDTO `json:"markets"`
		Cursor  string      `json:"cursor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("kalshi: decode markets: %w", err)
	}

	markets := make([]domain.Market, len(resp.Markets))
	for i, m := range resp.Markets {
		markets[i] = m.toDomain()
	}
	return markets, resp.Cursor, nil
}

// GetMarket returns a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market marketDTO `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return resp.Market.toDomain(), nil
}

// GetOrderbook returns the normalized two-sided book for a market.
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	path := fmt.Sprintf("/markets/%s/orderbook", url.PathEscape(ticker))

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}

	var resp struct {
		Orderbook orderbookDTO `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("kalshi: decode orderbook: %w", err)
	}

	return resp.Orderbook.toDomain(ticker), nil
}

// PlaceOrder submits an order. Market orders carry a protective price at
// the aggressive end of the range (99 for buys, 1 for sells) so the
// exchange treats them as marketable limits rather than rejecting them.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	if req.Count <= 0 || req.Side == "" || req.Action == "" {
		return domain.OrderAck{}, fmt.Errorf("kalshi: place order: %w", domain.ErrInvalidOrder)
	}

	payload := orderPayload{
		Ticker:        req.Ticker,
		ClientOrderID: req.ClientOrderID,
		Side:          string(req.Side),
		Action:        string(req.Action),
		Type:          string(req.Type),
		Count:         req.Count,
	}
	if req.ExpirationTs > 0 {
		ts := req.ExpirationTs
		payload.ExpirationTs = &ts
	}

	var cents int64
	switch req.Type {
	case domain.OrderTypeLimit:
		if req.LimitPrice <= 0 || req.LimitPrice >= 1 {
			return domain.OrderAck{}, fmt.Errorf("kalshi: limit price %.2f out of range: %w",
				req.LimitPrice, domain.ErrInvalidOrder)
		}
		cents = probToCents(req.LimitPrice)
	case domain.OrderTypeMarket:
		cents = 99
		if req.Action == domain.ActionSell {
			cents = 1
		}
	default:
		return domain.OrderAck{}, fmt.Errorf("kalshi: order type %q: %w", req.Type, domain.ErrInvalidOrder)
	}

	if req.Side == domain.SideYes {
		payload.YesPrice = &cents
	} else {
		payload.NoPrice = &cents
	}

	body, err := c.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", payload)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp struct {
		Order orderDTO `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderAck{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}
	if resp.Order.Status == "canceled" {
		return domain.OrderAck{}, fmt.Errorf("kalshi: order immediately canceled: %w", domain.ErrInvalidOrder)
	}

	createdAt, _ := time.Parse(time.RFC3339, resp.Order.CreatedTime)
	return domain.OrderAck{
		OrderID:       resp.Order.OrderID,
		ClientOrderID: resp.Order.ClientOrderID,
		Status:        resp.Order.Status,
		CreatedAt:     createdAt,
	}, nil
}

// CancelOrder cancels a resting order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	if _, err := c.doSignedRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetFills returns recent fills, optionally scoped to one ticker.
func (c *Client) GetFills(ctx context.Context, ticker string, limit int) ([]domain.Fill, error) {
	params := url.Values{}
	if ticker != "" {
		params.Set("ticker", ticker)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/portfolio/fills"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get fills: %w", err)
	}

	var resp struct {
		Fills []fillDTO `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode fills: %w", err)
	}

	fills := make([]domain.Fill, len(resp.Fills))
	for i, f := range resp.Fills {
		fills[i] = f.toDomain()
	}
	return fills, nil
}

// GetBalance returns the available account balance in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.doSignedRequest(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp balanceDTO
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}
	return float64(resp.Balance) / 100, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doSignedRequest builds, signs, sends, and reads an HTTP request against
// the Kalshi API.
// SetRateLimiter installs an outbound request limiter. Without one, requests
// go out unthrottled and rely on the API's own 429 responses.
func (c *Client) SetRateLimiter(l domain.RateLimiter) {
	c.limiter = l
}

func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "kalshi:rest"); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.signRequest(req, method, path); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers. Kalshi signs
// timestamp + method + path with RSA-PSS-SHA256.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		return fmt.Errorf("kalshi: RSA private key not configured")
	}

	// The signed path excludes query parameters.
	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + "/trade-api/v2" + signPath

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrRateLimited)
	case http.StatusBadRequest, http.StatusConflict:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrInvalidOrder)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
