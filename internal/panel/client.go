// Package panel implements an authenticated client for the 1Panel REST API.
//
// Every request carries a freshly derived 1Panel-Token / 1Panel-Timestamp pair.
// Responses use the {code, message, data} envelope; code 200 yields data,
// anything else is a RemoteError. Network and decoding failures are reported
// as TransportError. The client never retries.
package panel

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/goccy/go-json"
	"github.com/panelbot/panelbot"
)

const (
	// DefaultHost is used when no panel host is configured.
	DefaultHost = "http://localhost:10086"
	// Maximum accepted response body (8MB)
	maxResponseSize = 8 * 1024 * 1024
)

var (
	// Timeout for read requests
	readTimeout = 10 * time.Second
	// Timeout for container lifecycle operations, which wait on the docker daemon
	operateTimeout = 30 * time.Second
)

// Credentials identify and authenticate against one panel.
type Credentials struct {
	Host      string // Base URL, e.g. http://192.168.1.1:10086
	APIKey    string // API key from the panel settings
	VerifySSL bool   // Verify the panel's TLS certificate
}

// Client issues requests against a single panel. It is safe for concurrent use.
type Client struct {
	creds      Credentials
	baseURL    string           // host + /api/v{major}
	apiVersion semver.Version   // Panel API version
	now        func() time.Time // Clock used for token timestamps
	transport  *http.Transport  // Owned connection pool
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion selects the /api/v{major} path prefix.
func WithAPIVersion(v semver.Version) Option {
	return func(c *Client) {
		c.apiVersion = v
	}
}

// WithClock overrides the time source used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client owning its own connection pool. Call Close to release it.
func New(creds Credentials, opts ...Option) (*Client, error) {
	creds.Host = strings.TrimRight(strings.TrimSpace(creds.Host), "/")
	if creds.Host == "" {
		creds.Host = DefaultHost
	}
	u, err := url.Parse(creds.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid panel host %q", creds.Host)
	}

	c := &Client{
		creds:      creds,
		apiVersion: panelbot.APIVersion,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = fmt.Sprintf("%s/api/v%d", creds.Host, c.apiVersion.Major)

	c.transport = http.DefaultTransport.(*http.Transport).Clone()
	if !creds.VerifySSL {
		c.transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		slog.Warn("TLS certificate verification disabled", "host", creds.Host, "scheme", u.Scheme)
	}
	c.http = &http.Client{
		Transport: &authRoundTripper{
			rt:        c.transport,
			apiKey:    creds.APIKey,
			userAgent: panelbot.AppName + "/" + panelbot.Version,
			now:       c.now,
		},
	}
	return c, nil
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.creds.APIKey != ""
}

// Host returns the panel base URL.
func (c *Client) Host() string {
	return c.creds.Host
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// Request sends a request with the read timeout and returns the data field of
// a successful response.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	return c.request(ctx, method, endpoint, body, readTimeout)
}

func (c *Client) request(ctx context.Context, method, endpoint string, body any, timeout time.Duration) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	endpoint = strings.TrimLeft(endpoint, "/")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("encode body: %w", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reqBody)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Panel request", "method", method, "endpoint", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	var envelope Response[json.RawMessage]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&envelope); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)}
	}
	if envelope.Code != http.StatusOK {
		return nil, &RemoteError{Code: envelope.Code, Message: envelope.Message}
	}
	return envelope.Data, nil
}

// call sends a request and decodes the data field into a new T.
// A missing or null data field yields a zero T.
func call[T any](ctx context.Context, c *Client, method, endpoint string, body any, timeout time.Duration) (*T, error) {
	data, err := c.request(ctx, method, endpoint, body, timeout)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode data: %w", err)}
	}
	return out, nil
}
