package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wjszlachta/ig-rest-client/internal/logging"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

const refreshTokenEndpoint = "session/refresh-token"

// OAuthAuthenticator implements the version 3 login: a bearer access token with a
// fixed lifetime plus a refresh token, and the IG-ACCOUNT-ID header on every call.
//
// Switching account with PUT /session has been seen to fail with HTTP 500 when the
// session was created this way; verify against the live service before relying on it.
type OAuthAuthenticator struct {
	transport *transport.Transport
	username  string
	password  string
	logger    logging.Logger
	now       func() time.Time
}

type oauthLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type oauthLoginResponse struct {
	AccountID  string     `json:"accountId"`
	OAuthToken oauthToken `json:"oauthToken"`
}

type oauthToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    seconds `json:"expires_in"`
	TokenType    string  `json:"token_type"`
	Scope        string  `json:"scope"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// NewOAuthAuthenticator creates a version 3 (bearer-style) authenticator
func NewOAuthAuthenticator(t *transport.Transport, username, password string, opts ...Option) *OAuthAuthenticator {
	o := buildOptions(opts)
	return &OAuthAuthenticator{
		transport: t,
		username:  username,
		password:  password,
		logger:    o.logger,
		now:       o.now,
	}
}

// Name implements Authenticator
func (a *OAuthAuthenticator) Name() string {
	return "v3"
}

// Login posts the credentials to /session with Version 3
func (a *OAuthAuthenticator) Login(ctx context.Context) (Grant, error) {
	const op = "log in"

	resp, err := post(ctx, a.transport, a.logger, op, sessionEndpoint, "3", oauthLoginRequest{
		Identifier: a.username,
		Password:   a.password,
	})
	if err != nil {
		return Grant{}, err
	}

	var body oauthLoginResponse
	if err := decode(op, resp, &body); err != nil {
		return Grant{}, err
	}
	if body.OAuthToken.AccessToken == "" {
		return Grant{}, &AuthenticationError{Op: op, Err: errors.New("response has no access token")}
	}

	creds := a.issue(Credentials{AccountID: body.AccountID}, body.OAuthToken)
	return Grant{Credentials: creds, AccountID: body.AccountID}, nil
}

// NeedsRefresh reports true once now reaches the stored expiry
func (a *OAuthAuthenticator) NeedsRefresh(creds Credentials, now time.Time) bool {
	return !now.Before(creds.ExpiresAt)
}

// Refresh exchanges the refresh token for a new token pair. If the server rejects it
// (both tokens may have expired) a full login is attempted instead.
func (a *OAuthAuthenticator) Refresh(ctx context.Context, creds Credentials) (Grant, error) {
	const op = "refresh token"

	resp, err := post(ctx, a.transport, a.logger, op, refreshTokenEndpoint, "1", refreshRequest{
		RefreshToken: creds.RefreshToken,
	})
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) && authErr.Rejected() {
			a.logger.Warn("Refresh token rejected, logging in again")
			return a.Login(ctx)
		}
		return Grant{}, err
	}

	var token oauthToken
	if err := decode(op, resp, &token); err != nil {
		return Grant{}, err
	}
	if token.AccessToken == "" {
		return Grant{}, &AuthenticationError{Op: op, Err: errors.New("response has no access token")}
	}

	return Grant{Credentials: a.issue(creds, token)}, nil
}

// issue stores token in creds, stamping the expiry from the current time
func (a *OAuthAuthenticator) issue(creds Credentials, token oauthToken) Credentials {
	creds.AccessToken = token.AccessToken
	// Keep the previous refresh token if none was issued
	if token.RefreshToken != "" {
		creds.RefreshToken = token.RefreshToken
	}
	creds.ExpiresIn = time.Duration(token.ExpiresIn)
	creds.ExpiresAt = a.now().Add(creds.ExpiresIn)
	return creds
}

// Headers implements Authenticator
func (a *OAuthAuthenticator) Headers(creds Credentials) http.Header {
	h := make(http.Header)
	h.Set(HeaderAuthorization, "Bearer "+creds.AccessToken)
	h.Set(HeaderAccountID, creds.AccountID)
	return h
}

// Absorb implements Authenticator. Bearer tokens are not rotated per call.
func (a *OAuthAuthenticator) Absorb(creds Credentials, _ http.Header) Credentials {
	return creds
}

// SwitchAccount points the IG-ACCOUNT-ID header at accountID
func (a *OAuthAuthenticator) SwitchAccount(creds Credentials, accountID string) Credentials {
	creds.AccountID = accountID
	return creds
}
