package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/wjszlachta/ig-rest-client/internal/logging"
)

// Authorization headers presented by the two login protocols
const (
	HeaderCST           = "CST"
	HeaderSecurityToken = "X-SECURITY-TOKEN"
	HeaderAuthorization = "Authorization"
	HeaderAccountID     = "IG-ACCOUNT-ID"
)

// Credentials is the authorization state of one session.
// Which fields are populated depends on the Authenticator that issued it.
type Credentials struct {
	// Cookie-style (version 2 login)
	CST           string
	SecurityToken string

	// Bearer-style (version 3 login)
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
	// AccountID is sent as IG-ACCOUNT-ID on every bearer-style call
	AccountID string
}

// Grant is the outcome of a login or refresh exchange
type Grant struct {
	Credentials Credentials

	// AccountID is the account the server made current.
	// Empty when the exchange did not log in again.
	AccountID string
}

// Authenticator implements one of the IG login protocols.
// An instance is chosen once per client and never swapped.
type Authenticator interface {
	// Name identifies the protocol in logs ("v2" or "v3")
	Name() string

	// Login performs the initial authentication exchange
	Login(ctx context.Context) (Grant, error)

	// NeedsRefresh reports whether creds must be refreshed before use at now
	NeedsRefresh(creds Credentials, now time.Time) bool

	// Refresh exchanges creds for new ones, logging in again if the server rejects the refresh
	Refresh(ctx context.Context, creds Credentials) (Grant, error)

	// Headers returns the authorization headers to merge into a request
	Headers(creds Credentials) http.Header

	// Absorb folds authorization headers rotated by the server into creds
	Absorb(creds Credentials, header http.Header) Credentials

	// SwitchAccount records a server-confirmed account switch in creds
	SwitchAccount(creds Credentials, accountID string) Credentials
}

// Option configures an Authenticator
type Option func(*options)

type options struct {
	logger logging.Logger
	now    func() time.Time
}

// WithLogger sets the logger failed exchanges are reported to
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now, used to stamp token expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
