package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjszlachta/ig-rest-client/internal/auth"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

const gatewayPath = "/gateway/deal/"

// fakeClock is a manually advanced clock shared by the client and its authenticator
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordedRequest captures a request received by the fake gateway
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

func (r recordedRequest) String() string {
	return r.Method + " " + r.Path
}

// fakeGateway emulates the IG session endpoints. Handlers are keyed by "METHOD path".
type fakeGateway struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeGateway(t *testing.T) (*fakeGateway, *transport.Transport) {
	g := &fakeGateway{t: t, handlers: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	tr, err := transport.New(srv.Client(), srv.URL+gatewayPath, "test-key", 2*time.Second)
	require.NoError(t, err)
	return g, tr
}

func (g *fakeGateway) Handle(pattern string, h http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[pattern] = h
}

func (g *fakeGateway) Requests() []recordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]recordedRequest(nil), g.requests...)
}

// Calls lists requests as "METHOD path" in arrival order
func (g *fakeGateway) Calls() []string {
	var calls []string
	for _, r := range g.Requests() {
		calls = append(calls, r.String())
	}
	return calls
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, gatewayPath),
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		assert.NoError(g.t, json.Unmarshal(data, &rec.Body))
	}

	g.mu.Lock()
	g.requests = append(g.requests, rec)
	h := g.handlers[rec.String()]
	g.mu.Unlock()

	if h == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"errorCode": "error.not-found"})
		return
	}
	h(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// cstLogin answers a version 2 login on accountID
func cstLogin(accountID, cst, securityToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CST", cst)
		w.Header().Set("X-SECURITY-TOKEN", securityToken)
		writeJSON(w, http.StatusOK, map[string]any{
			"currentAccountId": accountID,
			"clientId":         "100",
		})
	}
}

// oauthLogin answers a version 3 login on accountID
func oauthLogin(accountID, accessToken, expiresIn string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accountId": accountID,
			"clientId":  "100",
			"oauthToken": map[string]any{
				"access_token":  accessToken,
				"refresh_token": "refresh-" + accessToken,
				"expires_in":    expiresIn,
				"token_type":    "Bearer",
				"scope":         "profile",
			},
		})
	}
}

func okJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	}
}

func newCSTClient(t *testing.T, accountID string, opts ...Option) (*Client, *fakeGateway) {
	g, tr := newFakeGateway(t)
	a := auth.NewCSTAuthenticator(tr, "user", "pass")
	return NewClient(tr, a, accountID, opts...), g
}

func newOAuthClient(t *testing.T, accountID string, clock *fakeClock) (*Client, *fakeGateway) {
	g, tr := newFakeGateway(t)
	a := auth.NewOAuthAuthenticator(tr, "user", "pass", auth.WithClock(clock.Now))
	return NewClient(tr, a, accountID, WithClock(clock.Now)), g
}
