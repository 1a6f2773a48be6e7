// Package client talks to the portal's JSON API.
//
// Every endpoint answers with an envelope {"success": bool, "message": string}
// plus endpoint-specific fields. A reply with success=false is returned as a
// Result, not an error; only transport failures (dial, read, undecodable
// body) are errors, and they wrap ErrTransport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrTransport marks failures where no usable reply was received.
var ErrTransport = errors.New("transport failure")

// APIError is an application-level failure reported by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (%d)", e.StatusCode)
	}
	return e.Message
}

// Result is a decoded reply envelope.
type Result struct {
	Success    bool
	Message    string
	StatusCode int
	Raw        []byte
}

// Get reads a field beyond the envelope using a gjson path, e.g. "user.name".
func (r Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Err returns nil on success and an *APIError otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &APIError{StatusCode: r.StatusCode, Message: r.Message}
}

// Client is a portal API client. Token, when set, is sent as a bearer token.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithTimeout bounds each request. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP.Timeout = d }
}

// WithToken sets the session token.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the portal at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) (Result, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Result{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return Result{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Debug("read failed", zap.String("path", path), zap.Error(err))
		return Result{}, fmt.Errorf("%w: read %s: %v", ErrTransport, path, err)
	}
	return c.decode(method, path, resp.StatusCode, raw)
}

func (c *Client) decode(method, path string, status int, raw []byte) (Result, error) {
	if !gjson.ValidBytes(raw) {
		c.log.Debug("non-JSON reply", zap.String("path", path), zap.Int("status", status))
		return Result{}, fmt.Errorf("%w: %s %s: reply is not JSON (status %d)", ErrTransport, method, path, status)
	}
	success := gjson.GetBytes(raw, "success")
	if success.Type != gjson.True && success.Type != gjson.False {
		return Result{}, fmt.Errorf("%w: %s %s: reply has no success flag (status %d)", ErrTransport, method, path, status)
	}
	return Result{
		Success:    success.Bool(),
		Message:    gjson.GetBytes(raw, "message").String(),
		StatusCode: status,
		Raw:        raw,
	}, nil
}
