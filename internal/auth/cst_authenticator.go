package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wjszlachta/ig-rest-client/internal/logging"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

// CSTAuthenticator implements the version 2 login: the session is carried by the
// CST and X-SECURITY-TOKEN headers. The tokens have no explicit expiry; the server
// may rotate them on any response, so they are refreshed reactively via Absorb.
type CSTAuthenticator struct {
	transport *transport.Transport
	username  string
	password  string
	logger    logging.Logger
}

type cstLoginRequest struct {
	EncryptedPassword bool   `json:"encryptedPassword"`
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
}

type cstLoginResponse struct {
	CurrentAccountID string `json:"currentAccountId"`
}

// NewCSTAuthenticator creates a version 2 (cookie-style) authenticator
func NewCSTAuthenticator(t *transport.Transport, username, password string, opts ...Option) *CSTAuthenticator {
	o := buildOptions(opts)
	return &CSTAuthenticator{
		transport: t,
		username:  username,
		password:  password,
		logger:    o.logger,
	}
}

// Name implements Authenticator
func (a *CSTAuthenticator) Name() string {
	return "v2"
}

// Login posts the credentials to /session with Version 2 and captures the
// two session tokens from the response headers.
func (a *CSTAuthenticator) Login(ctx context.Context) (Grant, error) {
	const op = "log in"

	resp, err := post(ctx, a.transport, a.logger, op, sessionEndpoint, "2", cstLoginRequest{
		EncryptedPassword: false,
		Identifier:        a.username,
		Password:          a.password,
	})
	if err != nil {
		return Grant{}, err
	}

	cst := resp.Header.Get(HeaderCST)
	securityToken := resp.Header.Get(HeaderSecurityToken)
	if cst == "" || securityToken == "" {
		a.logger.Error("Log in response is missing %s or %s header", HeaderCST, HeaderSecurityToken)
		return Grant{}, &AuthenticationError{Op: op, Err: fmt.Errorf("response is missing %s or %s header", HeaderCST, HeaderSecurityToken)}
	}

	var body cstLoginResponse
	if err := decode(op, resp, &body); err != nil {
		return Grant{}, err
	}

	return Grant{
		Credentials: Credentials{CST: cst, SecurityToken: securityToken},
		AccountID:   body.CurrentAccountID,
	}, nil
}

// NeedsRefresh implements Authenticator. Tokens are only rotated by the server.
func (a *CSTAuthenticator) NeedsRefresh(Credentials, time.Time) bool {
	return false
}

// Refresh implements Authenticator. It is never needed and returns creds unchanged.
func (a *CSTAuthenticator) Refresh(_ context.Context, creds Credentials) (Grant, error) {
	return Grant{Credentials: creds}, nil
}

// Headers implements Authenticator
func (a *CSTAuthenticator) Headers(creds Credentials) http.Header {
	h := make(http.Header)
	h.Set(HeaderCST, creds.CST)
	h.Set(HeaderSecurityToken, creds.SecurityToken)
	return h
}

// Absorb overwrites each token the server returned; absent headers leave the stored value.
func (a *CSTAuthenticator) Absorb(creds Credentials, header http.Header) Credentials {
	if v := header.Values(HeaderCST); len(v) > 0 {
		creds.CST = v[0]
	}
	if v := header.Values(HeaderSecurityToken); len(v) > 0 {
		creds.SecurityToken = v[0]
	}
	return creds
}

// SwitchAccount implements Authenticator. The tokens are not account-scoped.
func (a *CSTAuthenticator) SwitchAccount(creds Credentials, _ string) Credentials {
	return creds
}
