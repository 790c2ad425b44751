package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper intercepts HTTP requests and returns mock responses
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func TestNew_NormalisesBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		endpoint string
		want     string
	}{
		{"trailing slash", "https://demo-api.ig.com/gateway/deal/", "session", "https://demo-api.ig.com/gateway/deal/session"},
		{"no trailing slash", "https://demo-api.ig.com/gateway/deal", "session", "https://demo-api.ig.com/gateway/deal/session"},
		{"leading slash endpoint", "https://api.ig.com/gateway/deal/", "/session/refresh-token", "https://api.ig.com/gateway/deal/session/refresh-token"},
		{"empty defaults to demo", "", "positions", DemoURL + "positions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(nil, tt.baseURL, "key", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.URL(tt.endpoint))
			assert.Equal(t, DefaultTimeout, tr.Timeout())
		})
	}
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(nil, "gateway/deal", "key", time.Second)
	assert.Error(t, err)
}

func TestBaseHeaders(t *testing.T) {
	tr, err := New(nil, DemoURL, "abc", 0)
	require.NoError(t, err)

	h := tr.BaseHeaders()
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "application/json; charset=UTF-8", h.Get("Accept"))
	assert.Equal(t, "abc", h.Get(HeaderAPIKey))
}

func TestDo_SendsRequestAndReadsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gateway/deal/positions/otc", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("currency"))
		assert.Equal(t, "2", r.Header.Get("Version"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"size":1}`, string(body))

		w.Header().Set("X-Echo", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"dealReference":"ref"}`))
	}))
	defer srv.Close()

	tr, err := New(srv.Client(), srv.URL+"/gateway/deal/", "key", time.Second)
	require.NoError(t, err)

	h := tr.BaseHeaders()
	h.Set(HeaderVersion, "2")
	resp, err := tr.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "positions/otc",
		Params:   url.Values{"currency": {"EUR"}},
		Header:   h,
		Body:     []byte(`{"size":1}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Echo"))
	assert.Equal(t, `{"dealReference":"ref"}`, string(resp.Body))
}

func TestDo_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorCode":"error.security.client-token-invalid"}`))
	}))
	defer srv.Close()

	tr, err := New(srv.Client(), srv.URL, "key", time.Second)
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "accounts"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDo_TransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	httpClient := &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, boom
	}}}

	tr, err := New(httpClient, DemoURL, "key", time.Second)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "markets"})
	require.Error(t, err)

	var tErr *Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, http.MethodGet, tErr.Method)
	assert.Equal(t, DemoURL+"markets", tErr.URL)
	assert.ErrorIs(t, err, boom)
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tr, err := New(srv.Client(), srv.URL, "key", 50*time.Millisecond)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "slow"})
	var tErr *Error
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
