package auth

import "fmt"

// AuthenticationError is returned when logging in or refreshing credentials fails.
// The session cannot be used until a later call logs in successfully.
type AuthenticationError struct {
	Op         string // "log in", "refresh token" or "switch account"
	StatusCode int    // zero when no response was received
	Body       string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s (status %d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the server answered with a non-success status
func (e *AuthenticationError) Rejected() bool {
	return e.StatusCode != 0
}
