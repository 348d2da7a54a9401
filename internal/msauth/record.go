package msauth

import (
	"time"
)

// AccountKind distinguishes the two supported Microsoft account types.
// It determines the token endpoint and whether a client secret is sent.
type AccountKind string

const (
	// AccountPersonal is a consumer Microsoft account (public client,
	// "consumers" tenant, no client secret).
	AccountPersonal AccountKind = "personal"
	// AccountWorkSchool is an organizational account (confidential client
	// with a secret, tenant-specific endpoint).
	AccountWorkSchool AccountKind = "work_school"
)

// Record state values.
const (
	StateUnauthenticated = "unauthenticated"
	StateAuthorized      = "authorized"
	StateRefreshFailed   = "refresh_failed"
)

// ExpirySkew is how early a token is treated as expired, to absorb clock
// skew between this process and the identity provider.
const ExpirySkew = 60 * time.Second

// Record holds the OAuth state for one account: the delegated tokens, their
// expiry, and how they were obtained. It is a pure data holder; all
// transitions happen in the flow engine and the coordinator.
type Record struct {
	AccountKind  AccountKind `json:"account_kind"`
	TenantID     string      `json:"tenant_id,omitempty"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	Scopes       []string    `json:"scopes"`
	State        string      `json:"state"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Authorized reports whether the record holds a usable token pair.
func (r *Record) Authorized() bool {
	return r.State == StateAuthorized && r.AccessToken != "" && r.RefreshToken != ""
}

// Expired reports whether the access token should be considered expired at
// the given instant, applying the skew margin.
func (r *Record) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(r.ExpiresAt.Add(-ExpirySkew))
}

// HasScopes reports whether every required scope was granted. Scope
// comparison ignores the Graph resource prefix the provider sometimes adds.
func (r *Record) HasScopes(required ...string) bool {
	granted := make(map[string]bool, len(r.Scopes))
	for _, s := range r.Scopes {
		granted[trimScopePrefix(s)] = true
	}
	for _, req := range required {
		if !granted[trimScopePrefix(req)] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (r *Record) Clone() *Record {
	out := *r
	out.Scopes = append([]string(nil), r.Scopes...)
	return &out
}

func trimScopePrefix(s string) string {
	const prefix = "https://graph.microsoft.com/"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
