// Package mexc implements the exchange gateway against the MEXC spot REST and
// websocket APIs.
package mexc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"scalpbot/internal/crypto"
	"scalpbot/internal/domain"
)

// RetryPolicy bounds transient-error retries for REST calls. Delays grow as
// Base, 2*Base, 4*Base, ... up to MaxRetries attempts after the first.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
}

// Client is a REST client for the MEXC spot API implementing
// domain.ExchangeGateway. It is safe for concurrent use.
type Client struct {
	baseURL string
	auth    *crypto.HMACAuth
	http    *http.Client
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewClient creates a Client for the given base URL and credentials.
func NewClient(baseURL string, auth *crypto.HMACAuth, timeout time.Duration, retry RetryPolicy, logger *slog.Logger) *Client {
	if retry.Base <= 0 {
		retry.Base = 200 * time.Millisecond
	}
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		http:    &http.Client{Timeout: timeout},
		retry:   retry,
		logger:  logger.With(slog.String("component", "mexc_client")),
	}
}

// PlaceOrder submits an order. Rejections (4xx with an exchange error body)
// are returned wrapped in domain.ErrOrderRejected and are not retried;
// transport failures and 429/5xx are retried with backoff.
func (c *Client) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", spec.Symbol)
	params.Set("side", string(spec.Side))
	params.Set("type", string(spec.Type))
	params.Set("quantity", formatFloat(spec.Quantity))
	if spec.Type == domain.OrderTypeLimit {
		params.Set("price", formatFloat(spec.Price))
	}
	if spec.ClientOrderID != "" {
		params.Set("newClientOrderId", spec.ClientOrderID)
	}

	var resp orderResponse
	if err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("mexc: place order %s: %w", spec.Symbol, err)
	}
	return resp.toDomain(), nil
}

// CancelOrder cancels an order. The returned Order carries the status the
// exchange resolved the cancel to; a cancel that raced a fill comes back
// FILLED rather than CANCELED.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var resp orderResponse
	if err := c.doSigned(ctx, http.MethodDelete, "/api/v3/order", params, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("mexc: cancel order %s: %w", orderID, err)
	}
	return resp.toDomain(), nil
}

// GetOrderStatus fetches the current state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var resp orderResponse
	if err := c.doSigned(ctx, http.MethodGet, "/api/v3/order", params, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("mexc: get order %s: %w", orderID, err)
	}
	return resp.toDomain(), nil
}

// GetPrice returns the last trade price for the symbol. The ticker endpoint
// is public and needs no signature.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp tickerResponse
	if err := c.doPublic(ctx, "/api/v3/ticker/price", params, &resp); err != nil {
		return 0, fmt.Errorf("mexc: get price %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("mexc: parse price %q: %w", resp.Price, err)
	}
	return price, nil
}

// GetAvailableBalance returns the free balance of the given asset, or zero
// when the account holds none of it.
func (c *Client) GetAvailableBalance(ctx context.Context, asset string) (float64, error) {
	var resp accountResponse
	if err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
		return 0, fmt.Errorf("mexc: get balance %s: %w", asset, err)
	}

	for _, b := range resp.Balances {
		if b.Asset == asset {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("mexc: parse balance %q: %w", b.Free, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// doSigned performs an authenticated request with retry on transient
// failures. The signature covers the sorted query string plus timestamp.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, out any) error {
	return c.withRetry(ctx, func() error {
		query := c.auth.SignQuery(params)
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-MEXC-APIKEY", c.auth.Key)
		return c.execute(req, out)
	})
}

// doPublic performs an unauthenticated GET with retry on transient failures.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values, out any) error {
	return c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		return c.execute(req, out)
	})
}

// execute runs one HTTP round trip and decodes the response. Non-2xx
// responses are classified: 429 and 5xx as transient, anything else as a
// rejection carrying the exchange's error message.
func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &transientError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &transientError{err: fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Msg)}
		}
		return fmt.Errorf("%w: status %d code %d: %s", domain.ErrOrderRejected, resp.StatusCode, apiErr.Code, apiErr.Msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// withRetry runs fn, retrying transient failures with exponential backoff up
// to the configured ceiling. Rejections and context errors pass through.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retry.Base

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var te *transientError
		if !errors.As(err, &te) {
			return err
		}
		lastErr = te.err

		if attempt >= c.retry.MaxRetries {
			break
		}

		c.logger.Warn("transient exchange error, retrying",
			slog.Int("attempt", attempt+1),
			slog.String("error", te.err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return fmt.Errorf("retries exhausted: %w", lastErr)
}

// transientError marks a failure as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// formatFloat renders a float without scientific notation, which the
// exchange's parser does not accept.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Compile-time interface check.
var _ domain.ExchangeGateway = (*Client)(nil)
