// Package woocommerce implements core.CatalogGateway over the WooCommerce
// REST API (v3).
//
// Requests authenticate with the store's consumer key and secret over HTTP
// basic auth and are throttled by a token bucket so a large import does not
// trip the store's own rate limiting. Listing endpoints are paginated with
// per_page/page and the X-WP-TotalPages response header.
package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/stocksync/internal/core"
)

const (
	apiPath = "/wp-json/wc/v3"

	// DefaultPageSize is the largest per_page WooCommerce accepts.
	DefaultPageSize = 100

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the outbound request rate.
	DefaultRequestsPerSecond = 5

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Config holds the store endpoint and credentials.
type Config struct {
	StoreURL          string
	ConsumerKey       string
	ConsumerSecret    string
	Timeout           time.Duration
	RequestsPerSecond float64
	PageSize          int
}

// Client talks to one WooCommerce store.
type Client struct {
	baseURL  string
	key      string
	secret   string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. StoreURL, ConsumerKey and ConsumerSecret are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	storeURL := strings.TrimRight(strings.TrimSpace(cfg.StoreURL), "/")
	if storeURL == "" {
		return nil, errors.New("woocommerce: store URL is required")
	}
	if _, err := url.ParseRequestURI(storeURL); err != nil {
		return nil, fmt.Errorf("woocommerce: invalid store URL: %w", err)
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("woocommerce: consumer key and secret are required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL:  storeURL + apiPath,
		key:      cfg.ConsumerKey,
		secret:   cfg.ConsumerSecret,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListProducts returns every product in the store.
func (c *Client) ListProducts(ctx context.Context) ([]core.CatalogRecord, error) {
	var out []core.CatalogRecord
	err := c.paginate(ctx, "list products", "/products", nil, func(body []byte) (int, error) {
		var page []wcProduct
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, p := range page {
			out = append(out, p.record())
		}
		return len(page), nil
	})
	return out, err
}

// ListVariations returns the variations of a variable product.
func (c *Client) ListVariations(ctx context.Context, productID int64) ([]core.CatalogRecord, error) {
	var out []core.CatalogRecord
	path := fmt.Sprintf("/products/%d/variations", productID)
	op := fmt.Sprintf("list variations of product %d", productID)
	err := c.paginate(ctx, op, path, nil, func(body []byte) (int, error) {
		var page []wcVariation
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, v := range page {
			out = append(out, v.record(productID))
		}
		return len(page), nil
	})
	return out, err
}

// ListOrders returns every order with the given status, oldest pages first
// as the store returns them. "any" lists all statuses.
func (c *Client) ListOrders(ctx context.Context, status string) ([]core.Order, error) {
	var out []core.Order
	op := fmt.Sprintf("list %s orders", status)
	err := c.paginate(ctx, op, "/orders", url.Values{"status": {status}}, func(body []byte) (int, error) {
		var page []wcOrder
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, o := range page {
			out = append(out, o.order())
		}
		return len(page), nil
	})
	return out, err
}

// UpdateProductStock sets a product's absolute stock and enables stock management.
func (c *Client) UpdateProductStock(ctx context.Context, productID int64, qty int) (core.CatalogRecord, error) {
	var p wcProduct
	op := fmt.Sprintf("update product %d", productID)
	path := fmt.Sprintf("/products/%d", productID)
	if err := c.putStock(ctx, op, path, qty, &p); err != nil {
		return core.CatalogRecord{}, err
	}
	return p.record(), nil
}

// UpdateVariationStock sets a variation's absolute stock and enables stock management.
func (c *Client) UpdateVariationStock(ctx context.Context, productID, variationID int64, qty int) (core.CatalogRecord, error) {
	var v wcVariation
	op := fmt.Sprintf("update variation %d of product %d", variationID, productID)
	path := fmt.Sprintf("/products/%d/variations/%d", productID, variationID)
	if err := c.putStock(ctx, op, path, qty, &v); err != nil {
		return core.CatalogRecord{}, err
	}
	return v.record(productID), nil
}

// Ping verifies the credentials against the system status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, "ping", http.MethodGet, "/system_status", nil, nil)
	return err
}

func (c *Client) putStock(ctx context.Context, op, path string, qty int, dst any) error {
	payload, err := json.Marshal(wcStockUpdate{StockQuantity: qty, ManageStock: true})
	if err != nil {
		return err
	}
	body, _, err := c.do(ctx, op, http.MethodPut, path, nil, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &core.CatalogError{Op: op, Message: "invalid response body", Err: err}
	}
	return nil
}

// paginate walks page=1..X-WP-TotalPages. When the header is missing it
// stops at the first short page. filter is added to every page request.
func (c *Client) paginate(ctx context.Context, op, path string, filter url.Values, decode func([]byte) (int, error)) error {
	for page := 1; ; page++ {
		query := url.Values{
			"per_page": {strconv.Itoa(c.pageSize)},
			"page":     {strconv.Itoa(page)},
		}
		for k, v := range filter {
			query[k] = v
		}
		body, header, err := c.do(ctx, op, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}

		n, err := decode(body)
		if err != nil {
			return &core.CatalogError{Op: op, Message: "invalid response body", Err: err}
		}

		if total, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil {
			if page >= total {
				return nil
			}
			continue
		}
		if n < c.pageSize {
			return nil
		}
	}
}

// do sends one request and classifies failures:
// transport errors wrap ErrCatalogUnreachable, 401/403 wrap
// ErrCatalogUnauthorized, other non-2xx carry the store's message.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &core.CatalogError{Op: op, Message: err.Error(), Err: core.ErrCatalogUnreachable}
	}
	defer resp.Body.Close()

	c.logger.Debug("woocommerce request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, responseError(op, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &core.CatalogError{Op: op, Message: err.Error(), Err: core.ErrCatalogUnreachable}
	}
	return data, resp.Header, nil
}

func responseError(op string, resp *http.Response) error {
	ce := &core.CatalogError{Op: op, StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env wcError
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		ce.Message = env.Message
	} else {
		ce.Message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		ce.Err = core.ErrCatalogUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		ce.Err = core.ErrCatalogUnreachable
	}
	return ce
}
