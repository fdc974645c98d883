// Package apiclient is the portal's only door to the backend. It builds
// requests against the configured base URL, attaches the bearer token from
// an explicit TokenSource, and normalizes the response envelope into either
// decoded data or a typed *Error.
package apiclient

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 10 << 20

// TokenSource supplies the access token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client talks to the staff backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    TokenSource
	logger    zerolog.Logger
	userAgent string
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    zerolog.Nop(),
		userAgent: "staff-portal",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// WithTokens returns a shallow copy of c that authenticates with ts. Clients
// for different realms share one transport this way.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Public skips the Authorization header (login, refresh).
	Public bool
	// Fallback is the message used when a failed envelope carries none.
	Fallback string
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do performs r and decodes the envelope's data into out (which may be nil).
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	rid := uuid.New().String()

	var body io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return &Error{Kind: KindNetwork, Method: method, Path: r.Path, RequestID: rid,
				Message: fmt.Sprintf("encode request body: %v", err), Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(r.Path, r.Query), body)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: r.Path, RequestID: rid,
			Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, rid)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.Public && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("request_id", rid).
			Str("method", method).
			Str("path", r.Path).
			Dur("latency", time.Since(start)).
			Msg("api request failed")
		return &Error{Kind: KindNetwork, Method: method, Path: r.Path, RequestID: rid,
			Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	c.logger.Debug().
		Str("request_id", rid).
		Str("method", method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")

	if err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: r.Path, StatusCode: resp.StatusCode,
			RequestID: rid, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env Envelope
		msg := ""
		if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil {
			msg = env.Message
		}
		apiErr := httpError(method, r.Path, resp.StatusCode, msg, rid)
		apiErr.Code = env.Code
		return apiErr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: r.Path, StatusCode: resp.StatusCode,
			RequestID: rid, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	if !env.OK() {
		msg := env.Message
		if msg == "" {
			msg = r.Fallback
		}
		if msg == "" {
			msg = "request failed"
		}
		return &Error{Kind: KindBusiness, Method: method, Path: r.Path, StatusCode: resp.StatusCode,
			Code: env.Code, Message: msg, RequestID: rid}
	}
	if err := env.Decode(out); err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: r.Path, StatusCode: resp.StatusCode,
			RequestID: rid, Message: fmt.Sprintf("decode data: %v", err), Err: err}
	}
	return nil
}

// Call performs r and returns the decoded data as T.
func Call[T any](ctx context.Context, c *Client, r Request) (T, error) {
	var out T
	err := c.Do(ctx, r, &out)
	return out, err
}

// Get is Call for a GET with query parameters.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	return Call[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post is Call for a POST with a JSON body.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Call[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put is Call for a PUT with a JSON body.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Call[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch is Call for a PATCH with an optional JSON body.
func Patch[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Call[T](ctx, c, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete is Call for a DELETE.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Call[T](ctx, c, Request{Method: http.MethodDelete, Path: path})
}
