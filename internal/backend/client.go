// Package backend is a typed HTTP client for the commerce backend that owns
// products, customers, addresses and orders.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"foodbot/internal/logger"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultClientTimeout   = 10 * time.Second
)

// StatusError reports a backend response outside the 200-201 success class.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s returned status %d", e.Endpoint, e.Status)
}

// Client calls the commerce backend. All requests are bounded by the client
// timeout; there are no automatic retries, since callers must be able to
// treat every failure as "nothing happened".
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New builds a Client for the given base URL. A timeout of zero applies the
// default of 10 seconds.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshake,
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		log:     logger.Component("backend"),
	}
}

// Login authenticates a Telegram identity and returns the bearer token plus
// the backend customer. Accepts 200 and 201.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/telegram-login", "", req, &out, http.StatusOK, http.StatusCreated)
	return out, err
}

// Products fetches the catalog. No authentication required.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.do(ctx, http.MethodGet, "/products", "", nil, &out, http.StatusOK)
	return out, err
}

// CreateAddress persists a delivery location and returns its id.
func (c *Client) CreateAddress(ctx context.Context, token string, req AddressRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/addresses", token, req, &out, http.StatusOK, http.StatusCreated)
	return out.ID, err
}

// AssociateAddress links a stored address to a customer.
func (c *Client) AssociateAddress(ctx context.Context, token string, customerID, addressID int64) error {
	path := fmt.Sprintf("/customers/%d/addresses/%d", customerID, addressID)
	return c.do(ctx, http.MethodPost, path, token, struct{}{}, nil, http.StatusCreated)
}

// CreateOrder submits a new order and returns its id.
func (c *Client) CreateOrder(ctx context.Context, token string, req OrderRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/orders", token, req, &out, http.StatusCreated)
	return out.ID, err
}

// CustomerOrders lists the orders placed by a customer.
func (c *Client) CustomerOrders(ctx context.Context, token string, customerID int64) ([]Order, error) {
	var out []Order
	path := fmt.Sprintf("/orders/customer/%d", customerID)
	err := c.do(ctx, http.MethodGet, path, token, nil, &out, http.StatusOK)
	return out, err
}

// Order fetches a single order with delivery and driver details.
func (c *Client) Order(ctx context.Context, token string, orderID int64) (Order, error) {
	var out Order
	path := fmt.Sprintf("/orders/%d", orderID)
	err := c.do(ctx, http.MethodGet, path, token, nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any, okStatuses ...int) error {
	endpoint := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			slog.String("event", "backend.request"),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("backend: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	ok := false
	for _, s := range okStatuses {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.Warn("unexpected status",
			slog.String("event", "backend.request"),
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("backend: decode %s: %w", endpoint, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	c.log.Debug("request done",
		slog.String("event", "backend.request"),
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
