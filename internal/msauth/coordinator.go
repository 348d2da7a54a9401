package msauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Coordinator decides when a refresh is needed and guarantees at most one
// in-flight refresh per account. Concurrent callers that arrive while a
// refresh is running wait for that refresh's result instead of issuing a
// second token request - some providers rotate the refresh token on every
// use, so a racing second request would invalidate the first one's result.
type Coordinator struct {
	store      Store
	flow       Flow
	accountKey string
	logger     *slog.Logger
	group      singleflight.Group
}

// NewCoordinator creates a refresh coordinator over the given store and
// flow. The account key scopes the single-flight lock so that a future
// multi-account deployment serializes refreshes per account, not globally.
func NewCoordinator(store Store, flow Flow, accountKey string, logger *slog.Logger) *Coordinator {
	if accountKey == "" {
		accountKey = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:      store,
		flow:       flow,
		accountKey: accountKey,
		logger:     logger,
	}
}

// EnsureFresh returns a credential record with a usable access token. When
// the current token is still inside its expiry margin and force is false,
// no network call is made. Otherwise exactly one refresh runs; every
// concurrent caller shares its outcome.
func (c *Coordinator) EnsureFresh(ctx context.Context, force bool) (*Record, error) {
	record, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if !force && !record.Expired(time.Now()) {
		return record, nil
	}

	// The refresh is shared by every waiter in the flight, so it must not
	// die with the first arriving caller's context.
	result, err, _ := c.group.Do(c.accountKey, func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx), force)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Record), nil
}

// refresh runs inside the single-flight group. It re-reads the store first:
// a caller that queued behind a finished refresh gets the fresh record
// without a second token request.
func (c *Coordinator) refresh(ctx context.Context, force bool) (*Record, error) {
	record, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if !force && !record.Expired(time.Now()) {
		return record, nil
	}

	c.logger.Info("Refreshing access token",
		"account_kind", record.AccountKind,
		"expires_at", record.ExpiresAt,
	)

	fresh, err := c.flow.Refresh(ctx, record)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			// Terminal: remember the failure so callers stop retrying
			// until the user reauthorizes interactively.
			record.State = StateRefreshFailed
			record.UpdatedAt = time.Now()
			if saveErr := c.store.Save(context.WithoutCancel(ctx), record); saveErr != nil {
				c.logger.Error("Failed to persist refresh failure", "error", saveErr)
			}
			c.logger.Warn("Refresh token rejected by provider", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrReauthorizationRequired, err)
		}
		c.logger.Warn("Token refresh failed", "error", err)
		return nil, err
	}

	// Persist even if the original caller stopped waiting: a fresher valid
	// token is never wrong to save, and the rotated refresh token must not
	// be lost.
	if err := c.store.Save(context.WithoutCancel(ctx), fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	c.logger.Info("Access token refreshed",
		"expires_at", fresh.ExpiresAt,
		"refresh_token_rotated", fresh.RefreshToken != record.RefreshToken,
	)

	return fresh, nil
}

// load fetches the record and rejects states that cannot serve requests.
func (c *Coordinator) load(ctx context.Context) (*Record, error) {
	record, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no credentials stored", ErrReauthorizationRequired)
		}
		return nil, err
	}

	switch record.State {
	case StateRefreshFailed, StateUnauthenticated:
		return nil, fmt.Errorf("%w: credential state is %s", ErrReauthorizationRequired, record.State)
	}

	if !record.HasScopes(TaskScopes...) {
		return nil, ErrMissingScopes
	}

	return record, nil
}

// AuthCodeURL returns the provider authorize URL and the CSRF state value
// baked into it. The caller hands the URL to the user out-of-band and must
// verify the state on the redirect.
func (c *Coordinator) AuthCodeURL() (url, state string) {
	state = uuid.New().String()
	return c.flow.AuthCodeURL(state), state
}

// Authorize completes the interactive flow: it exchanges the authorization
// code, validates the granted scopes and persists the new record, resetting
// any previous refresh failure.
func (c *Coordinator) Authorize(ctx context.Context, code string) (*Record, error) {
	record, err := c.flow.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(record.Scopes) > 0 && !record.HasScopes(TaskScopes...) {
		return nil, ErrMissingScopes
	}
	if err := c.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist credentials: %w", err)
	}

	c.logger.Info("Interactive authorization completed",
		"account_kind", record.AccountKind,
		"expires_at", record.ExpiresAt,
	)

	return record, nil
}

// Status returns the current record without triggering any network call.
func (c *Coordinator) Status(ctx context.Context) (*Record, error) {
	return c.store.Load(ctx)
}
