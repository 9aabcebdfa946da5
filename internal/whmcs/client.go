package whmcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock-monitor/internal/util"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 5 * time.Minute

	actionGetProducts = "GetProducts"
)

// Product is the canonical shape of one catalog item after normalization.
type Product struct {
	ID           int64                       `json:"id"`
	Name         string                      `json:"name"`
	Description  string                      `json:"description"`
	GroupID      int64                       `json:"group_id"`
	Module       string                      `json:"module"`
	StockControl bool                        `json:"stock_control"`
	Quantity     int                         `json:"quantity"`
	Available    bool                        `json:"available"`
	Pricing      map[string]map[string]Price `json:"pricing"`
	Order        int                         `json:"order"`
}

// Price is one pricing entry for a currency and billing period.
type Price struct {
	Price float64 `json:"price"`
	Setup float64 `json:"setup"`
}

// InventorySnapshot is the live stock state of one product.
type InventorySnapshot struct {
	ProductID    int64     `json:"product_id"`
	Name         string    `json:"name"`
	StockControl bool      `json:"stock_control"`
	Quantity     int       `json:"quantity"`
	Available    bool      `json:"available"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Config holds client construction parameters.
type Config struct {
	APIURL     string
	Identifier string
	Secret     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	Backoff    BackoffPolicy

	// HTTPClient overrides the transport, used in tests.
	HTTPClient *http.Client
}

// Client speaks the WHMCS API: authenticated form-encoded POST requests,
// normalized responses, TTL caching and retry with exponential backoff on
// transient failures.
type Client struct {
	apiURL     string
	identifier string
	secret     string
	timeout    time.Duration
	cacheTTL   time.Duration
	backoff    BackoffPolicy

	httpClient *http.Client
	cache      *Cache
	logger     *zap.Logger

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a WHMCS client. Missing construction parameters fail
// fast with a ValidationError before any network call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, &ValidationError{Message: "API URL is required"}
	}
	if cfg.Identifier == "" {
		return nil, &ValidationError{Message: "API identifier is required"}
	}
	if cfg.Secret == "" {
		return nil, &ValidationError{Message: "API secret is required"}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Backoff.MaxAttempts <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		identifier: cfg.Identifier,
		secret:     cfg.Secret,
		timeout:    cfg.Timeout,
		cacheTTL:   cfg.CacheTTL,
		backoff:    cfg.Backoff,
		httpClient: cfg.HTTPClient,
		cache:      NewCache(),
		logger:     util.GetLogger(),
		sleep:      sleepCtx,
	}, nil
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// FetchCatalog fetches the product list, optionally filtered (e.g. pid,
// gid, limitnum). With useCache, a live result is cached for the
// client's TTL and reused until it expires.
func (c *Client) FetchCatalog(ctx context.Context, filters map[string]string, useCache bool) ([]Product, error) {
	ctx, span := util.StartSpan(ctx, "WhmcsClient.FetchCatalog")
	defer span.End()

	key := cacheKey(actionGetProducts, filters)

	if useCache {
		if cached, ok := c.cache.Get(key); ok {
			util.UpstreamCacheHits.Inc()
			return cached.([]Product), nil
		}
		util.UpstreamCacheMisses.Inc()
	}

	resp, err := c.request(ctx, actionGetProducts, filters)
	if err != nil {
		return nil, err
	}

	products := normalizeProducts(resp.Products)

	if useCache {
		c.cache.Put(key, products, c.cacheTTL)
	}

	return products, nil
}

// FetchItem fetches one product by ID. A nil product with a nil error
// means the product does not exist upstream.
func (c *Client) FetchItem(ctx context.Context, productID int64, useCache bool) (*Product, error) {
	products, err := c.FetchCatalog(ctx, map[string]string{"pid": strconv.FormatInt(productID, 10)}, useCache)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// FetchInventory fetches the live stock state of one product. Monitoring
// checks call it with useCache=false to force freshness. A product that
// does not exist upstream is an APIError.
func (c *Client) FetchInventory(ctx context.Context, productID int64, useCache bool) (*InventorySnapshot, error) {
	product, err := c.FetchItem(ctx, productID, useCache)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &APIError{Message: fmt.Sprintf("product with ID %d not found", productID)}
	}

	return &InventorySnapshot{
		ProductID:    productID,
		Name:         product.Name,
		StockControl: product.StockControl,
		Quantity:     product.Quantity,
		Available:    product.Available,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// TestConnection performs a minimal request to verify connectivity and
// credentials. An AuthError means bad credentials; a ConnectionError or
// TimeoutError means the endpoint is unreachable.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.request(ctx, actionGetProducts, map[string]string{"limitnum": "1"})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.logger.Error("WHMCS authentication failed", zap.Error(err))
		} else {
			c.logger.Error("WHMCS connection test failed", zap.Error(err))
		}
		return err
	}

	c.logger.Info("WHMCS connection test successful")
	return nil
}

type apiResponse struct {
	Result   string          `json:"result"`
	Message  string          `json:"message"`
	Products json.RawMessage `json:"products"`
}

// request performs one API action with the retry policy applied: transient
// failures back off and try again up to the attempt cap, terminal failures
// surface immediately.
func (c *Client) request(ctx context.Context, action string, params map[string]string) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= c.backoff.MaxAttempts; attempt++ {
		resp, err := c.makeRequest(ctx, action, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == c.backoff.MaxAttempts {
			return nil, err
		}

		util.UpstreamRetriesTotal.Inc()
		delay := c.backoff.Delay(attempt)
		c.logger.Warn("Transient WHMCS failure, retrying",
			zap.String("action", action),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := c.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// makeRequest performs a single attempt and classifies its failure mode.
func (c *Client) makeRequest(ctx context.Context, action string, params map[string]string) (*apiResponse, error) {
	form := url.Values{}
	form.Set("identifier", c.identifier)
	form.Set("secret", c.secret)
	form.Set("action", action)
	form.Set("responsetype", "json")
	for k, v := range params {
		form.Set(k, v)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.UpstreamRequestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Message: fmt.Sprintf("HTTP error: %s", resp.Status), StatusCode: resp.StatusCode}
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("invalid JSON response: %v", err), StatusCode: resp.StatusCode}
	}

	// The upstream reports domain errors inside an HTTP 200 body.
	if payload.Result == "error" {
		message := payload.Message
		if message == "" {
			message = "Unknown error"
		}

		lower := strings.ToLower(message)
		if strings.Contains(lower, "authentication") || strings.Contains(lower, "invalid identifier") {
			return nil, &AuthError{Message: message}
		}
		return nil, &APIError{Message: message, StatusCode: resp.StatusCode}
	}

	return &payload, nil
}

func (c *Client) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: c.timeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Timeout: c.timeout}
	}

	return &ConnectionError{Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
