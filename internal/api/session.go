package api

import (
	"context"
	"net/http"

	"github.com/wjszlachta/ig-rest-client/internal/auth"
)

const sessionEndpoint = "session"

type switchAccountRequest struct {
	AccountID      string `json:"accountId"`
	DefaultAccount bool   `json:"defaultAccount"`
}

func switchAccountCall(accountID string, defaultAccount bool) call {
	return newCall(http.MethodPut, sessionEndpoint, []RequestOption{
		WithVersion("1"),
		WithBody(switchAccountRequest{AccountID: accountID, DefaultAccount: defaultAccount}),
	})
}

// SwitchAccount makes accountID the session's active account, and optionally the
// default for future logins. The client only starts using accountID once the
// server has confirmed the switch.
func (c *Client) SwitchAccount(ctx context.Context, accountID string, defaultAccount bool) (*AccountSwitch, error) {
	resp, err := c.do(ctx, switchAccountCall(accountID, defaultAccount))
	if err != nil {
		return nil, err
	}

	c.store.Update(func(cur auth.Credentials) auth.Credentials {
		return c.auth.SwitchAccount(cur, accountID)
	})
	c.setAccountID(accountID)
	c.logger.Info("Switched session to account %s", accountID)

	result := &AccountSwitch{}
	if err := decodeInto(resp, result); err != nil {
		return nil, err
	}
	return result, nil
}

// SessionDetails fetches the session and verifies it is on the client's account.
// A mismatch returns *ConsistencyError.
func (c *Client) SessionDetails(ctx context.Context) (*SessionDetails, error) {
	details := &SessionDetails{}
	if err := c.Do(ctx, http.MethodGet, sessionEndpoint, details, WithVersion("1")); err != nil {
		return nil, err
	}

	if local := c.AccountID(); details.AccountID != local {
		c.logger.Error("Incorrect accountId in session details: got %s, expected %s", details.AccountID, local)
		return nil, &ConsistencyError{Local: local, Remote: details.AccountID}
	}
	return details, nil
}

// LogOut closes the session on the server. The credentials held locally are kept,
// so later calls fail with *RequestFailedError rather than silently logging in again.
func (c *Client) LogOut(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, sessionEndpoint, nil, WithVersion("1"))
}
