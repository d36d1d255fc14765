package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20

	// IdempotencyHeader carries the checkout attempt key on order creation.
	IdempotencyHeader = "Idempotency-Key"
)

// Client talks to the storefront REST API. It holds no credential: every
// authenticated method takes the bearer token explicitly.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validatorv10.Validate
	logger   *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		validate: validation.New(),
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.validate.RegisterStructValidation(inventoryItemValidation, InventoryItem{})
	c.validate.RegisterStructValidation(cartLineValidation, RemoteCartLine{})
	return c
}

type request struct {
	method  string
	path    string
	query   url.Values
	token   string
	public  bool
	idemKey string
	body    interface{}
}

// do performs the call and decodes a 2xx body into out when out is non-nil.
// Authenticated requests without a token fail before anything is sent.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	if !r.public && r.token == "" {
		return errs.Authentication("missing bearer credential")
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.public {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.idemKey != "" {
		req.Header.Set(IdempotencyHeader, r.idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("method", r.method), zap.String("path", r.path), zap.Error(err))
		return errs.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errs.Network(fmt.Errorf("read %s %s response: %w", r.method, r.path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := errs.FromStatus(resp.StatusCode, errorMessage(raw))
		if resp.StatusCode == http.StatusForbidden {
			c.logger.Warn("api request forbidden", zap.String("method", r.method), zap.String("path", r.path))
		} else {
			c.logger.Debug("api request rejected", zap.String("method", r.method), zap.String("path", r.path),
				zap.Int("status", resp.StatusCode), zap.String("message", e.Message))
		}
		return e
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return errs.New(errs.KindValidation, "empty response body", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.New(errs.KindValidation, "malformed response body", err)
	}
	return nil
}

// check validates a decoded payload against its `validate` tags.
func (c *Client) check(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		return errs.New(errs.KindValidation, "unexpected response shape", err)
	}
	return nil
}

// errorMessage extracts a human readable message from an error body: a JSON
// object with message/error, a JSON string, or plain text.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var obj map[string]interface{}
	if json.Unmarshal(raw, &obj) == nil {
		for _, k := range []string{"message", "error", "detail"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s
			}
		}
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	const maxLen = 512
	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}
	return string(raw)
}

func seg(s string) string {
	return url.PathEscape(s)
}
