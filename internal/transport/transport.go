package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// LiveURL is the IG REST trading API for live accounts
	LiveURL = "https://api.ig.com/gateway/deal/"

	// DemoURL is the IG REST trading API for demo accounts
	DemoURL = "https://demo-api.ig.com/gateway/deal/"

	// DefaultTimeout applies to every request when none is configured
	DefaultTimeout = 10 * time.Second

	HeaderAPIKey  = "X-IG-API-KEY"
	HeaderVersion = "Version"
)

// Request is a single call against the trading API.
// Endpoint is resolved relative to the base URL.
type Request struct {
	Method   string
	Endpoint string
	Params   url.Values
	Header   http.Header
	Body     []byte
}

// Response holds everything read back from the server
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Error is a network or timeout failure. No response was received.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport performs single HTTP requests against the trading API base URL
type Transport struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	timeout    time.Duration
}

// New creates a transport for baseURL.
// If httpClient is nil, a default client is used. A non-positive timeout means DefaultTimeout.
func New(httpClient *http.Client, baseURL, apiKey string, timeout time.Duration) (*Transport, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if baseURL == "" {
		baseURL = DemoURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host are required", baseURL)
	}
	// Endpoints resolve below the last path segment, so it must end with a slash
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return &Transport{
		httpClient: httpClient,
		baseURL:    u,
		apiKey:     apiKey,
		timeout:    timeout,
	}, nil
}

// BaseHeaders returns the headers every request carries
func (t *Transport) BaseHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json; charset=UTF-8")
	h.Set(HeaderAPIKey, t.apiKey)
	return h
}

// URL resolves an endpoint such as "session" or "positions/otc" against the base URL
func (t *Transport) URL(endpoint string) string {
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	return t.baseURL.ResolveReference(ref).String()
}

// Timeout returns the per-request timeout
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// Do executes req and reads the full response body.
// Any failure to get a response is returned as *Error.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	target := t.URL(req.Endpoint)
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: target, Err: err}
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
