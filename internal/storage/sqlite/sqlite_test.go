package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todohub/internal/msauth"
)

func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "todohub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testRecord() *msauth.Record {
	return &msauth.Record{
		AccountKind:  msauth.AccountPersonal,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scopes:       []string{"offline_access", "Tasks.ReadWrite", "User.Read"},
		State:        msauth.StateAuthorized,
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestLoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background())
	assert.True(t, errors.Is(err, msauth.ErrNotFound))
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	record := testRecord()

	require.NoError(t, store.Save(context.Background(), record))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, record.AccountKind, loaded.AccountKind)
	assert.Equal(t, record.AccessToken, loaded.AccessToken)
	assert.Equal(t, record.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, record.Scopes, loaded.Scopes)
	assert.Equal(t, record.State, loaded.State)
	assert.True(t, record.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestSaveReplacesExistingRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord()))

	updated := testRecord()
	updated.AccessToken = "access-2"
	updated.RefreshToken = "refresh-2"
	updated.State = msauth.StateRefreshFailed
	require.NoError(t, store.Save(ctx, updated))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "access-2", loaded.AccessToken)
	assert.Equal(t, "refresh-2", loaded.RefreshToken)
	assert.Equal(t, msauth.StateRefreshFailed, loaded.State)
}

func TestWorkSchoolRecordKeepsTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord()
	record.AccountKind = msauth.AccountWorkSchool
	record.TenantID = "11111111-2222-3333-4444-555555555555"
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, msauth.AccountWorkSchool, loaded.AccountKind)
	assert.Equal(t, record.TenantID, loaded.TenantID)
}

func TestConcurrentSaves(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			done <- store.Save(ctx, testRecord())
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	_, err := store.Load(ctx)
	assert.NoError(t, err)
}
