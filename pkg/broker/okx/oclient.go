// File: pkg/broker/okx/oclient.go
package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/crazy8156/okx/utilities"
)

// Client is a thin REST client for the OKX v5 API. Instrument metadata is
// cached after the first refresh; all other calls go straight to the venue.
type Client struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	HTTPClient *http.Client
	limiter    *rate.Limiter
	logger     *utilities.Logger
	cfg        *utilities.OKXConfig

	dataMu         sync.RWMutex
	instrumentMap  map[string]Instrument // keyed by instId, e.g. "BTC-USDT"
	commonToInstID map[string]string     // "BTC/USDT" -> "BTC-USDT"
	instIDToCommon map[string]string
}

func NewClient(appCfg *utilities.OKXConfig, HTTPClient *http.Client, logger *utilities.Logger) *Client {
	if appCfg == nil {
		panic("OKX Client requires non-nil OKXConfig")
	}

	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("OKX.NewClient: Logger fallback used.")
	}

	if HTTPClient == nil {
		HTTPClient = newHTTPClient(appCfg, logger)
	}

	baseURL := appCfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	limit := appCfg.RateLimitPerSec
	if limit <= 0 {
		limit = 5
	}
	burst := appCfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}

	return &Client{
		BaseURL:        baseURL,
		APIKey:         appCfg.APIKey,
		APISecret:      appCfg.APISecret,
		Passphrase:     appCfg.Passphrase,
		HTTPClient:     HTTPClient,
		limiter:        rate.NewLimiter(limit, burst),
		logger:         logger,
		cfg:            appCfg,
		instrumentMap:  make(map[string]Instrument),
		commonToInstID: make(map[string]string),
		instIDToCommon: make(map[string]string),
	}
}

// newHTTPClient builds the shared HTTP client, honoring the optional proxy setting.
func newHTTPClient(cfg *utilities.OKXConfig, logger *utilities.Logger) *http.Client {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.LogWarn("OKX Client: invalid http_proxy %q, ignoring: %v", cfg.HTTPProxy, err)
			return client
		}
		logger.LogInfo("OKX Client: routing requests through proxy %s", proxyURL.Host)
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client
}

// GetInstID translates a common pair name into the venue instrument ID, refreshing
// the instrument map on a miss.
func (c *Client) GetInstID(ctx context.Context, commonPair string) (string, error) {
	c.dataMu.RLock()
	instID, ok := c.commonToInstID[commonPair]
	c.dataMu.RUnlock()
	if ok {
		return instID, nil
	}

	if err := c.RefreshInstruments(ctx); err != nil {
		return "", err
	}

	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	instID, ok = c.commonToInstID[commonPair]
	if ok {
		return instID, nil
	}
	// Some instruments report base/quote fields that do not recompose into
	// the common name; fall back to the naive translation when that instId
	// is live on the venue.
	naive := utilities.ToInstID(commonPair)
	if _, live := c.instrumentMap[naive]; live {
		return naive, nil
	}
	return "", fmt.Errorf("instrument for pair %s not found after refresh", commonPair)
}

// GetCommonPairName translates a venue instrument ID back to a common pair name.
func (c *Client) GetCommonPairName(instID string) string {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	if common, ok := c.instIDToCommon[instID]; ok {
		return common
	}
	return utilities.FromInstID(instID)
}

// RefreshInstruments loads the SPOT instrument list and rebuilds the pair maps.
func (c *Client) RefreshInstruments(ctx context.Context) error {
	c.logger.LogInfo("OKX Client: Refreshing instruments info...")
	params := url.Values{"instType": {"SPOT"}}
	var resp okxResponse[Instrument]
	if err := c.callPublic(ctx, "/api/v5/public/instruments", params, &resp); err != nil {
		return fmt.Errorf("okx: RefreshInstruments API call failed: %w", err)
	}
	if resp.Code != "0" {
		return fmt.Errorf("okx: instruments API error %s: %s", resp.Code, resp.Msg)
	}

	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.instrumentMap = make(map[string]Instrument, len(resp.Data))
	c.commonToInstID = make(map[string]string, len(resp.Data))
	c.instIDToCommon = make(map[string]string, len(resp.Data))
	for _, inst := range resp.Data {
		if inst.State != "live" {
			continue
		}
		c.instrumentMap[inst.InstID] = inst
		commonPair := fmt.Sprintf("%s/%s", inst.BaseCcy, inst.QuoteCcy)
		c.commonToInstID[commonPair] = inst.InstID
		c.instIDToCommon[inst.InstID] = commonPair
	}
	c.logger.LogInfo("OKX Client: Refreshed %d live spot instruments.", len(c.instrumentMap))
	return nil
}

// GetTickerAPI fetches the ticker for a single instrument.
func (c *Client) GetTickerAPI(ctx context.Context, instID string) (TickerInfo, error) {
	params := url.Values{"instId": {instID}}
	var resp okxResponse[TickerInfo]
	if err := c.callPublic(ctx, "/api/v5/market/ticker", params, &resp); err != nil {
		return TickerInfo{}, err
	}
	if resp.Code != "0" {
		return TickerInfo{}, fmt.Errorf("okx: ticker API error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return TickerInfo{}, fmt.Errorf("okx: ticker for %s not found in response", instID)
	}
	return resp.Data[0], nil
}

// GetTickersAPI fetches 24h tickers for every SPOT instrument.
func (c *Client) GetTickersAPI(ctx context.Context) ([]TickerInfo, error) {
	params := url.Values{"instType": {"SPOT"}}
	var resp okxResponse[TickerInfo]
	if err := c.callPublic(ctx, "/api/v5/market/tickers", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: tickers API error %s: %s", resp.Code, resp.Msg)
	}
	return resp.Data, nil
}

// GetCandlesAPI fetches up to limit OHLCV candles for an instrument. OKX returns
// rows as ["ts","o","h","l","c","vol",...] sorted newest first.
func (c *Client) GetCandlesAPI(ctx context.Context, instID, bar string, limit int) ([][]string, error) {
	params := url.Values{
		"instId": {instID},
		"bar":    {bar},
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp okxResponse[[]string]
	if err := c.callPublic(ctx, "/api/v5/market/candles", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: candles API error %s: %s", resp.Code, resp.Msg)
	}
	return resp.Data, nil
}

// GetBalanceAPI fetches the trading-account balance.
func (c *Client) GetBalanceAPI(ctx context.Context) (AccountBalance, error) {
	var resp okxResponse[AccountBalance]
	if err := c.callPrivate(ctx, http.MethodGet, "/api/v5/account/balance", nil, nil, &resp); err != nil {
		return AccountBalance{}, err
	}
	if resp.Code != "0" {
		return AccountBalance{}, fmt.Errorf("okx: balance API error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return AccountBalance{}, errors.New("okx: balance response contained no data")
	}
	return resp.Data[0], nil
}

// PlaceOrderAPI submits an order and returns the venue order ID.
func (c *Client) PlaceOrderAPI(ctx context.Context, body map[string]string) (string, error) {
	var resp okxResponse[OrderResult]
	if err := c.callPrivate(ctx, http.MethodPost, "/api/v5/trade/order", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Code != "0" {
		return "", fmt.Errorf("okx: order API error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("okx: order response contained no data")
	}
	result := resp.Data[0]
	if result.SCode != "0" && result.SCode != "" {
		return "", fmt.Errorf("okx: order rejected %s: %s", result.SCode, result.SMsg)
	}
	return result.OrdID, nil
}

// GetOrderAPI fetches the detail of a single order by ID.
func (c *Client) GetOrderAPI(ctx context.Context, instID, ordID string) (OrderDetail, error) {
	params := url.Values{"instId": {instID}, "ordId": {ordID}}
	var resp okxResponse[OrderDetail]
	if err := c.callPrivate(ctx, http.MethodGet, "/api/v5/trade/order", params, nil, &resp); err != nil {
		return OrderDetail{}, err
	}
	if resp.Code != "0" {
		return OrderDetail{}, fmt.Errorf("okx: order query API error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return OrderDetail{}, fmt.Errorf("okx: order %s not found", ordID)
	}
	return resp.Data[0], nil
}

// GetOrdersHistoryAPI fetches recently completed orders for an instrument.
func (c *Client) GetOrdersHistoryAPI(ctx context.Context, instID string, limit int) ([]OrderDetail, error) {
	params := url.Values{
		"instType": {"SPOT"},
		"instId":   {instID},
		"state":    {"filled"},
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp okxResponse[OrderDetail]
	if err := c.callPrivate(ctx, http.MethodGet, "/api/v5/trade/orders-history", params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: orders-history API error %s: %s", resp.Code, resp.Msg)
	}
	return resp.Data, nil
}

func (c *Client) callPublic(ctx context.Context, path string, params url.Values, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("okx: rate limiter wait: %w", err)
	}
	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	c.logger.LogDebug("OKX callPublic: URL=%s", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("okx: create public request for %s: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", "OKXBot/1.0")
	c.setSimulatedHeader(req)

	return utilities.DoJSONRequest(c.HTTPClient, req, c.maxRetries(), c.retryDelay(), target)
}

func (c *Client) callPrivate(ctx context.Context, method, path string, params url.Values, body map[string]string, target interface{}) error {
	if c.APIKey == "" || c.APISecret == "" || c.Passphrase == "" {
		return errors.New("okx: API credentials not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("okx: rate limiter wait: %w", err)
	}

	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	var bodyStr string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("okx: marshal request body for %s: %w", path, err)
		}
		bodyStr = string(raw)
	}

	authHeaders := utilities.GenerateOKXAuthHeaders(c.APIKey, c.APISecret, c.Passphrase, method, requestPath, bodyStr, time.Now())

	fullURL := c.BaseURL + requestPath
	var reqBody *strings.Reader
	if bodyStr != "" {
		reqBody = strings.NewReader(bodyStr)
	} else {
		reqBody = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("okx: create private request for %s: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OKXBot/1.0")
	for key, val := range authHeaders {
		req.Header.Set(key, val)
	}
	c.setSimulatedHeader(req)
	c.logger.LogDebug("OKX callPrivate: %s %s", method, fullURL)

	return utilities.DoJSONRequest(c.HTTPClient, req, c.maxRetries(), c.retryDelay(), target)
}

// setSimulatedHeader flags the request for OKX demo trading when sandbox mode is on.
func (c *Client) setSimulatedHeader(req *http.Request) {
	if c.cfg.Sandbox {
		req.Header.Set("x-simulated-trading", "1")
	}
}

func (c *Client) maxRetries() int {
	if c.cfg.MaxRetries > 0 {
		return c.cfg.MaxRetries
	}
	return 2
}

func (c *Client) retryDelay() time.Duration {
	if c.cfg.RetryDelaySec > 0 {
		return time.Duration(c.cfg.RetryDelaySec) * time.Second
	}
	return 2 * time.Second
}
