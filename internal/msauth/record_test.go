package msauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "well before expiry",
			expiresAt: now.Add(30 * time.Minute),
			want:      false,
		},
		{
			name:      "inside skew margin",
			expiresAt: now.Add(30 * time.Second),
			want:      true,
		},
		{
			name:      "already expired",
			expiresAt: now.Add(-10 * time.Minute),
			want:      true,
		},
		{
			name: "zero expiry",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &Record{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, record.Expired(now))
		})
	}
}

func TestRecord_HasScopes(t *testing.T) {
	record := &Record{
		Scopes: []string{
			"https://graph.microsoft.com/Tasks.ReadWrite",
			"User.Read",
		},
	}

	assert.True(t, record.HasScopes("Tasks.ReadWrite"))
	assert.True(t, record.HasScopes("https://graph.microsoft.com/User.Read"))
	assert.True(t, record.HasScopes("Tasks.ReadWrite", "User.Read"))
	assert.False(t, record.HasScopes("Mail.ReadWrite"))
}

func TestRecord_Authorized(t *testing.T) {
	record := &Record{
		State:        StateAuthorized,
		AccessToken:  "at",
		RefreshToken: "rt",
	}
	assert.True(t, record.Authorized())

	record.State = StateRefreshFailed
	assert.False(t, record.Authorized())

	record.State = StateAuthorized
	record.RefreshToken = ""
	assert.False(t, record.Authorized())
}

func TestRecord_Clone(t *testing.T) {
	record := &Record{
		AccessToken: "at",
		Scopes:      []string{"Tasks.ReadWrite"},
	}

	clone := record.Clone()
	clone.Scopes[0] = "changed"
	clone.AccessToken = "other"

	assert.Equal(t, "Tasks.ReadWrite", record.Scopes[0])
	assert.Equal(t, "at", record.AccessToken)
}
