package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const (
	publishableKeyHeader        = "x-publishable-api-key"
	errorBodyReadLimit    int64 = 4096
	defaultTimeout              = 10 * time.Second
	breakerName                 = "commerce-store-api"
)

var (
	errBaseURLRequired        = errors.New("commerce base url is required")
	errPublishableKeyRequired = errors.New("commerce publishable key is required")
)

// Observer receives the latency of every Store API operation.
type Observer interface {
	ObserveCommerceCall(operation string, duration time.Duration, err error)
}

// Client talks to the commerce platform Store API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	publishableKey string
	breaker        *gobreaker.CircuitBreaker[[]byte]
	observer       Observer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default instrumented HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithObserver reports call latency to obs.
func WithObserver(obs Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(cfg config.BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker(cfg)
	}
}

// NewClient builds a Store API client from config.
func NewClient(cfg config.CommerceConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	key := strings.TrimSpace(cfg.PublishableKey)
	if key == "" {
		return nil, errPublishableKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:        baseURL,
		publishableKey: key,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.breaker == nil {
		client.breaker = newBreaker(config.BreakerConfig{})
	}

	return client, nil
}

func newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
		},
	})
}

// APIError is a non-2xx Store API response.
type APIError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("commerce status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("commerce status %d", e.Status)
}

type tokenKey struct{}

// WithCustomerToken attaches a customer bearer token to outbound calls made with ctx.
func WithCustomerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func customerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce client not configured")
	}
	start := time.Now()
	err := c.execute(ctx, method, path, query, body, out)
	if c.observer != nil {
		c.observer.ObserveCommerceCall(op, time.Since(start), err)
	}
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = encoded
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(publishableKeyHeader, c.publishableKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := customerToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, decodeAPIError(resp)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
	}
	return apiErr
}

func mapError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("%s failed", op)
		}
		switch {
		case apiErr.Status == http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
		case apiErr.Status == http.StatusUnauthorized:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
		case apiErr.Status == http.StatusForbidden:
			return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, msg)
		case apiErr.Status == http.StatusConflict:
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, msg)
		case apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce backend unavailable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s failed", op))
}
