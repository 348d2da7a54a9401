package msauth

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{
		AccountKind:  AccountPersonal,
		TenantID:     "consumers",
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		ExpiresAt:    time.Now().Add(time.Hour).Round(time.Second),
		Scopes:       []string{"Tasks.ReadWrite", "User.Read"},
		State:        StateAuthorized,
		UpdatedAt:    time.Now().Round(time.Second),
	}
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth", "credentials.json")
	store := NewFileStore(path)
	ctx := context.Background()

	saved := testRecord()
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, saved.Scopes, loaded.Scopes)
	assert.Equal(t, saved.State, loaded.State)
	assert.True(t, saved.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestFileStore_LoadNotFound(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_RestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), testRecord()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_InterruptedSaveKeepsPreviousRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	store := NewFileStore(path)
	ctx := context.Background()

	saved := testRecord()
	require.NoError(t, store.Save(ctx, saved))

	// Simulate a crash after the temp write but before the rename: a stray
	// temp file next to the record must not affect what Load returns.
	stray := filepath.Join(dir, ".credentials-999.tmp")
	require.NoError(t, os.WriteFile(stray, []byte(`{"access_token":"torn"}`), 0600))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record := testRecord()
			assert.NoError(t, store.Save(ctx, record))
		}()
	}
	wg.Wait()

	// Whatever save won, the file must parse as one complete record.
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, loaded.AccessToken)
	assert.NotEmpty(t, loaded.RefreshToken)
}
