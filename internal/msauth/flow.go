package msauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Scopes requested from the Microsoft identity platform. offline_access is
// what makes the provider issue a refresh token.
var RequiredScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Tasks.ReadWrite",
	"https://graph.microsoft.com/User.Read",
}

// TaskScopes is the minimum grant a record must carry before any task
// operation executes.
var TaskScopes = []string{"Tasks.ReadWrite"}

// FlowConfig contains the OAuth application registration values.
type FlowConfig struct {
	ClientID     string
	ClientSecret string // empty for personal accounts
	TenantID     string // ignored for personal accounts
	RedirectURL  string
}

// Flow drives one of the two supported OAuth2 flows to completion:
// authorization-code exchange and silent refresh. It is pure protocol logic
// against the identity provider's token endpoint; persistence and
// single-flight belong to the Coordinator.
type Flow interface {
	Kind() AccountKind
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Record, error)
	Refresh(ctx context.Context, record *Record) (*Record, error)
}

// NewFlow selects the flow implementation from the registration values: a
// configured client secret means a work/school confidential client,
// otherwise a personal public client against the consumers tenant. The
// choice is made once here and never re-branched per call.
func NewFlow(cfg FlowConfig) (Flow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:3000/callback"
	}

	if cfg.ClientSecret != "" {
		tenant := cfg.TenantID
		if tenant == "" {
			tenant = "organizations"
		}
		return &oauthFlow{
			kind:   AccountWorkSchool,
			tenant: tenant,
			conf: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     microsoft.AzureADEndpoint(tenant),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       RequiredScopes,
			},
		}, nil
	}

	return &oauthFlow{
		kind:   AccountPersonal,
		tenant: "consumers",
		conf: &oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    microsoft.AzureADEndpoint("consumers"),
			RedirectURL: cfg.RedirectURL,
			Scopes:      RequiredScopes,
		},
	}, nil
}

// oauthFlow implements both account kinds over one oauth2.Config; the kind
// only changes which endpoint and credentials were baked in at construction.
type oauthFlow struct {
	kind   AccountKind
	tenant string
	conf   *oauth2.Config
}

func (f *oauthFlow) Kind() AccountKind {
	return f.kind
}

// AuthCodeURL builds the provider authorize URL with the CSRF state value.
func (f *oauthFlow) AuthCodeURL(state string) string {
	return f.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a fresh credential record.
func (f *oauthFlow) Exchange(ctx context.Context, code string) (*Record, error) {
	token, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return f.recordFromToken(token), nil
}

// Refresh exchanges the refresh token for a new access token. If the
// provider rotated the refresh token, the new one replaces the old;
// otherwise the previous one is kept.
func (f *oauthFlow) Refresh(ctx context.Context, record *Record) (*Record, error) {
	if record.RefreshToken == "" {
		return nil, ErrReauthorizationRequired
	}

	src := f.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: record.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	out := f.recordFromToken(token)
	if out.RefreshToken == "" {
		out.RefreshToken = record.RefreshToken
	}
	if len(out.Scopes) == 0 {
		out.Scopes = append([]string(nil), record.Scopes...)
	}
	return out, nil
}

// recordFromToken builds an authorized record. token.Expiry was computed by
// the oauth2 transport from expires_in at response-receipt time, the clock
// the provider contract counts from.
func (f *oauthFlow) recordFromToken(token *oauth2.Token) *Record {
	record := &Record{
		AccountKind:  f.kind,
		TenantID:     f.tenant,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		State:        StateAuthorized,
		UpdatedAt:    time.Now(),
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		record.Scopes = strings.Fields(scope)
	}
	return record
}

// invalidGrantMarkers are provider responses that mean the grant itself is
// dead and retrying is pointless.
var invalidGrantMarkers = []string{
	"invalid_grant",
	"expired or revoked",
	"revoked",
}

// classifyTokenError maps a token-endpoint failure onto the package error
// taxonomy so the coordinator can tell terminal failures from transient
// ones.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		desc := retrieveErr.ErrorDescription
		lower := strings.ToLower(code + " " + desc + " " + string(retrieveErr.Body))
		for _, marker := range invalidGrantMarkers {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("%w: %s", ErrInvalidGrant, desc)
			}
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return &TransientAuthError{Err: err}
		}
		return &ProviderError{
			StatusCode:  statusCode(retrieveErr),
			Code:        code,
			Description: desc,
		}
	}
	// No structured response at all: transport-level failure.
	return &TransientAuthError{Err: err}
}

func statusCode(err *oauth2.RetrieveError) int {
	if err.Response != nil {
		return err.Response.StatusCode
	}
	return 0
}
