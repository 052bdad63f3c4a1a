package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// CSRFCookieName is the cookie the server uses to hand out forgery-protection tokens
	CSRFCookieName = "csrftoken"
	// CSRFHeader echoes the cookie value on state-changing requests
	CSRFHeader = "X-CSRFToken"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client represents an HTTP client for the media API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	insecure   bool
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// and a cookie jar is attached when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.httpClient = &cp
	}
}

// WithInsecureTLS skips TLS verification for self-signed certificates. It
// applies to the final HTTP client whatever the option order.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.insecure = true
	}
}

// insecureTransport clones rt (or the default transport) with certificate
// verification disabled
func insecureTransport(rt http.RoundTripper) http.RoundTripper {
	base, ok := rt.(*http.Transport)
	if !ok || base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	t := base.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	}
	t.TLSClientConfig.InsecureSkipVerify = true
	return t
}

// WithTimeout sets the per-request timeout (0 disables it)
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger attaches a debug logger for request tracing
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new API client for the server at baseURL (e.g. http://127.0.0.1:8000)
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.insecure {
		c.httpClient.Transport = insecureTransport(c.httpClient.Transport)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// BaseURL returns the server root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves an API path against the base URL
func (c *Client) URL(path string) string {
	return c.baseURL.String() + path
}

// CSRFToken returns the forgery-protection token the server handed out, or ""
func (c *Client) CSRFToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == CSRFCookieName {
			return cookie.Value
		}
	}
	return ""
}

// EnsureCSRFToken makes a GET to path when no csrftoken cookie is held yet,
// so the next state-changing request can echo one. The response status is
// ignored; only transport failures are returned.
func (c *Client) EnsureCSRFToken(ctx context.Context, op, path string) error {
	if c.CSRFToken() != "" {
		return nil
	}
	_, err := c.Do(ctx, op, http.MethodGet, path, nil, nil)
	return err
}

// Response is a completed round trip with its body already read
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(op string, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Kind:    KindTransport,
			Op:      op,
			Status:  r.Status,
			Message: "malformed response",
			Body:    string(r.Body),
			Err:     fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

// Err converts a non-2xx response into a classified *Error
func (r *Response) Err(op string) error {
	if r.OK() {
		return nil
	}
	return classify(op, r.Status, r.Body)
}

// Do sends a request and reads the whole response. A non-2xx status is not an
// error here; callers decide how to classify it with Response.Err.
func (c *Client) Do(ctx context.Context, op, method, path string, header http.Header, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	limit := int64(-1)
	if resp.StatusCode >= 300 {
		limit = maxErrorBody
	}
	data, err := readBody(resp.Body, limit)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// postJSON marshals v and posts it to path
func (c *Client) postJSON(ctx context.Context, op, path string, header http.Header, v any) (*Response, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")

	return c.Do(ctx, op, http.MethodPost, path, h, bytes.NewReader(jsonData))
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	return io.ReadAll(r)
}
