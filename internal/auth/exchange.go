package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wjszlachta/ig-rest-client/internal/logging"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

const sessionEndpoint = "session"

// post sends an unauthenticated JSON request used by the login and refresh flows.
// Failures are logged with status and body and returned as *AuthenticationError.
func post(ctx context.Context, t *transport.Transport, logger logging.Logger, op, endpoint, version string, payload any) (*transport.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &AuthenticationError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	header := t.BaseHeaders()
	header.Set(transport.HeaderVersion, version)

	resp, err := t.Do(ctx, transport.Request{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Header:   header,
		Body:     body,
	})
	if err != nil {
		logger.Error("Failed to %s: %v", op, err)
		return nil, &AuthenticationError{Op: op, Err: err}
	}

	if !resp.OK() {
		logger.Error("Failed to %s", op)
		logger.Error("Status code: %d", resp.StatusCode)
		logger.Error("Response text: %s", string(resp.Body))
		return nil, &AuthenticationError{Op: op, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	return resp, nil
}

// decode parses a successful exchange response
func decode(op string, resp *transport.Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &AuthenticationError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// seconds is a token lifetime. The API sends it as a string ("60"),
// but a bare number is accepted too.
type seconds time.Duration

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %q: %w", raw, err)
	}
	*s = seconds(time.Duration(f * float64(time.Second)))
	return nil
}
