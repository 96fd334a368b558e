// Package client talks to the EDMS REST API: it loads form schemas, submits
// flattened payloads and mirrors approval transitions after checking them
// locally. It never retries; timeouts come from the context or WithTimeout.
package client

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

	log "github.com/sirupsen/logrus"
)

// AuthContext supplies the bearer token for each request.
type AuthContext interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// TokenFunc adapts a function to AuthContext.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Client is safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	auth    AuthContext
	log     log.FieldLogger
	timeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call that arrives without a context deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithAuth(a AuthContext) Option {
	return func(c *Client) { c.auth = a }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: http.DefaultClient,
		log:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// errorBody covers both error shapes the API produces.
type errorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.auth != nil {
		token, err := c.auth.Token(ctx)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("auth token: %w", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.log.WithFields(log.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("api call")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		te := &TransportError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			te.Message = eb.Error
			if te.Message == "" {
				te.Message = eb.Message
			}
			te.Errors = eb.Errors
		}
		if te.Message == "" {
			te.Message = http.StatusText(resp.StatusCode)
		}
		return te
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}
	return c.do(ctx, op, method, path, "application/json", body, out)
}
