package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

// RequestOption customises a single call
type RequestOption func(*call)

// WithParams adds query parameters
func WithParams(params url.Values) RequestOption {
	return func(cl *call) {
		if cl.params == nil {
			cl.params = make(url.Values)
		}
		for k, v := range params {
			cl.params[k] = append(cl.params[k], v...)
		}
	}
}

// WithBody sets the request body, sent as JSON
func WithBody(body any) RequestOption {
	return func(cl *call) {
		cl.body = body
	}
}

// WithHeader sets a header that overrides both the base and authorization headers
func WithHeader(key, value string) RequestOption {
	return func(cl *call) {
		if cl.header == nil {
			cl.header = make(http.Header)
		}
		cl.header.Set(key, value)
	}
}

// WithVersion selects the endpoint version via the Version header
func WithVersion(version string) RequestOption {
	return WithHeader(transport.HeaderVersion, version)
}

func newCall(method, endpoint string, opts []RequestOption) call {
	cl := call{method: method, endpoint: endpoint}
	for _, opt := range opts {
		opt(&cl)
	}
	return cl
}

// Get retrieves endpoint
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (Result, error) {
	return c.request(ctx, newCall(http.MethodGet, endpoint, opts))
}

// Post creates at endpoint
func (c *Client) Post(ctx context.Context, endpoint string, opts ...RequestOption) (Result, error) {
	return c.request(ctx, newCall(http.MethodPost, endpoint, opts))
}

// Put updates endpoint
func (c *Client) Put(ctx context.Context, endpoint string, opts ...RequestOption) (Result, error) {
	return c.request(ctx, newCall(http.MethodPut, endpoint, opts))
}

// Delete deletes at endpoint
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (Result, error) {
	return c.request(ctx, newCall(http.MethodDelete, endpoint, opts))
}

// Do sends an authenticated request and decodes a non-empty JSON response into out.
// out may be nil to discard the response.
func (c *Client) Do(ctx context.Context, method, endpoint string, out any, opts ...RequestOption) error {
	resp, err := c.do(ctx, newCall(method, endpoint, opts))
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

func (c *Client) request(ctx context.Context, cl call) (Result, error) {
	resp, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}

	result := Result{}
	if err := decodeInto(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func decodeInto(resp *transport.Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
