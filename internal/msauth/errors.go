package msauth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Store when no record has been saved yet.
	ErrNotFound = errors.New("credential record not found")

	// ErrInvalidGrant means the provider rejected the refresh token or
	// authorization code. It is terminal: only a new interactive
	// authorization can recover.
	ErrInvalidGrant = errors.New("invalid grant - authorization code or refresh token rejected")

	// ErrReauthorizationRequired is surfaced to callers when the stored
	// refresh token is no longer usable and the user must re-run the
	// interactive authorization.
	ErrReauthorizationRequired = errors.New("reauthorization required - please re-run interactive authorization")

	// ErrMissingScopes means the granted scope set does not cover the
	// minimum required for task operations.
	ErrMissingScopes = errors.New("granted scopes do not include required task permissions")
)

// ProviderError is a structured non-2xx response from the token endpoint
// that is not an invalid_grant. Generally not retryable.
type ProviderError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token endpoint returned %d: %s (%s)", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
}

// TransientAuthError wraps a network or provider failure during refresh that
// may succeed if retried later. The coordinator does not retry these itself;
// retry policy belongs to the remote task client.
type TransientAuthError struct {
	Err error
}

func (e *TransientAuthError) Error() string {
	return fmt.Sprintf("transient auth failure: %v", e.Err)
}

func (e *TransientAuthError) Unwrap() error {
	return e.Err
}
