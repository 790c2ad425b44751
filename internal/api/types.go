package api

import (
	"fmt"

	"github.com/wjszlachta/ig-rest-client/internal/auth"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

// Result is a decoded JSON object response. It is empty when the response had no body.
type Result map[string]any

// SessionDetails is the response of GET /session (version 1)
type SessionDetails struct {
	ClientID              string `json:"clientId"`
	AccountID             string `json:"accountId"`
	TimezoneOffset        int    `json:"timezoneOffset"`
	Locale                string `json:"locale"`
	Currency              string `json:"currency"`
	LightstreamerEndpoint string `json:"lightstreamerEndpoint"`
}

// AccountSwitch is the response of PUT /session (version 1)
type AccountSwitch struct {
	TrailingStopsEnabled  bool `json:"trailingStopsEnabled"`
	DealingEnabled        bool `json:"dealingEnabled"`
	HasActiveDemoAccounts bool `json:"hasActiveDemoAccounts"`
	HasActiveLiveAccounts bool `json:"hasActiveLiveAccounts"`
}

// TransportError is a network or timeout failure; no response was received
type TransportError = transport.Error

// AuthenticationError is a failed login or token refresh
type AuthenticationError = auth.AuthenticationError

// RequestFailedError is a non-success status on an authenticated call
type RequestFailedError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// ConsistencyError means the server reports a different account than the client tracks
type ConsistencyError struct {
	Local  string
	Remote string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("incorrect accountId in session details: server reports %s, client expects %s", e.Remote, e.Local)
}
