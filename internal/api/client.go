package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/wjszlachta/ig-rest-client/internal/auth"
	"github.com/wjszlachta/ig-rest-client/internal/logging"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

// Client is an authenticated session against the IG REST trading API.
// It logs in on first use, refreshes credentials as the authenticator requires
// and attaches them to every request.
type Client struct {
	transport *transport.Transport
	auth      auth.Authenticator
	store     *auth.Store
	logger    logging.Logger
	now       func() time.Time

	mu        sync.RWMutex
	accountID string

	authGroup singleflight.Group // Deduplicates concurrent login/refresh
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger requests and failures are reported to
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now when checking token expiry
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a client that operates on accountID.
// No request is sent until the first call.
func NewClient(t *transport.Transport, authenticator auth.Authenticator, accountID string, opts ...Option) *Client {
	c := &Client{
		transport: t,
		auth:      authenticator,
		store:     auth.NewStore(),
		logger:    logging.Nop(),
		now:       time.Now,
		accountID: accountID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccountID returns the account the client operates on
func (c *Client) AccountID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

func (c *Client) setAccountID(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountID = accountID
}

// Authenticated reports whether the client currently holds credentials
func (c *Client) Authenticated() bool {
	_, ok := c.store.Get()
	return ok
}

// call describes one request before authorization headers are attached
type call struct {
	method   string
	endpoint string
	params   url.Values
	header   http.Header // caller overrides, highest precedence
	body     any
}

// session returns credentials valid for the next call, logging in or
// refreshing first if needed. Concurrent callers share one exchange.
func (c *Client) session(ctx context.Context) (auth.Credentials, error) {
	if creds, ok := c.store.Get(); ok && !c.auth.NeedsRefresh(creds, c.now()) {
		return creds, nil
	}

	result, err, _ := c.authGroup.Do("session", func() (any, error) {
		return c.authenticate(ctx)
	})
	if err != nil {
		return auth.Credentials{}, err
	}
	return result.(auth.Credentials), nil
}

func (c *Client) authenticate(ctx context.Context) (auth.Credentials, error) {
	// Double-check after winning the singleflight race
	creds, ok := c.store.Get()
	if ok && !c.auth.NeedsRefresh(creds, c.now()) {
		return creds, nil
	}

	var grant auth.Grant
	var err error
	if !ok {
		c.logger.Info("Logging in (%s)", c.auth.Name())
		grant, err = c.auth.Login(ctx)
	} else {
		c.logger.Info("Refreshing token expired at %s", creds.ExpiresAt.Format(time.RFC3339))
		grant, err = c.auth.Refresh(ctx, creds)
	}
	if err != nil {
		c.store.Clear()
		return auth.Credentials{}, err
	}

	creds = grant.Credentials
	if grant.AccountID != "" {
		creds, err = c.confirmAccount(ctx, creds, grant.AccountID)
		if err != nil {
			c.store.Clear()
			return auth.Credentials{}, err
		}
	}

	c.store.Set(creds)
	return creds, nil
}

// confirmAccount switches a freshly opened session to the configured account
// when the server made a different one current.
func (c *Client) confirmAccount(ctx context.Context, creds auth.Credentials, serverAccountID string) (auth.Credentials, error) {
	want := c.AccountID()
	if serverAccountID == want {
		return creds, nil
	}

	c.logger.Info("Session opened on account %s, switching to %s", serverAccountID, want)
	resp, err := c.send(ctx, creds, switchAccountCall(want, false))
	if err != nil {
		return auth.Credentials{}, &auth.AuthenticationError{Op: "switch account", Err: err}
	}

	creds = c.auth.Absorb(creds, resp.Header)
	return c.auth.SwitchAccount(creds, want), nil
}

// do sends an authenticated call and lets the authenticator absorb rotated tokens
func (c *Client) do(ctx context.Context, cl call) (*transport.Response, error) {
	creds, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, creds, cl)
	if err != nil {
		return nil, err
	}

	c.store.Update(func(cur auth.Credentials) auth.Credentials {
		return c.auth.Absorb(cur, resp.Header)
	})
	return resp, nil
}

// send dispatches cl with creds. It never touches the store.
func (c *Client) send(ctx context.Context, creds auth.Credentials, cl call) (*transport.Response, error) {
	requestID := uuid.NewString()

	var body []byte
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = data
	}

	header := mergeHeaders(c.transport.BaseHeaders(), c.auth.Headers(creds), cl.header)

	c.logger.Debug("[%s] API Request: %s %s", requestID, cl.method, c.transport.URL(cl.endpoint))
	resp, err := c.transport.Do(ctx, transport.Request{
		Method:   cl.method,
		Endpoint: cl.endpoint,
		Params:   cl.params,
		Header:   header,
		Body:     body,
	})
	if err != nil {
		c.logger.Error("[%s] Request failed: %v", requestID, err)
		return nil, err
	}
	c.logger.Debug("[%s] API Response: %s %s -> %d", requestID, cl.method, cl.endpoint, resp.StatusCode)

	if !resp.OK() {
		c.logger.Error("[%s] Request failed", requestID)
		c.logger.Error("[%s] Status code: %d", requestID, resp.StatusCode)
		c.logger.Error("[%s] Response text: %s", requestID, string(resp.Body))
		return nil, &RequestFailedError{
			Method:     cl.method,
			Endpoint:   cl.endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}

	return resp, nil
}

// mergeHeaders layers header sets in increasing precedence: base headers,
// then the authenticator's, then the caller's. A key present in a later
// tier replaces every value from earlier tiers.
func mergeHeaders(tiers ...http.Header) http.Header {
	merged := make(http.Header)
	for _, tier := range tiers {
		for k, v := range tier {
			merged[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
	return merged
}
