package msauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFlow counts refresh calls and returns canned results.
type stubFlow struct {
	refreshCalls  atomic.Int64
	exchangeCalls atomic.Int64
	refreshDelay  time.Duration
	refreshErr    error
	exchangeErr   error
}

func (f *stubFlow) Kind() AccountKind { return AccountPersonal }

func (f *stubFlow) AuthCodeURL(state string) string {
	return "https://login.example/authorize?state=" + state
}

func (f *stubFlow) Exchange(ctx context.Context, code string) (*Record, error) {
	f.exchangeCalls.Add(1)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &Record{
		AccountKind:  AccountPersonal,
		AccessToken:  "exchanged-access",
		RefreshToken: "exchanged-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       []string{"Tasks.ReadWrite", "User.Read"},
		State:        StateAuthorized,
	}, nil
}

func (f *stubFlow) Refresh(ctx context.Context, record *Record) (*Record, error) {
	n := f.refreshCalls.Add(1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &Record{
		AccountKind:  AccountPersonal,
		AccessToken:  fmt.Sprintf("refreshed-access-%d", n),
		RefreshToken: fmt.Sprintf("refreshed-refresh-%d", n),
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       record.Scopes,
		State:        StateAuthorized,
	}, nil
}

func storeWith(t *testing.T, record *Record) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), record))
	return store
}

func freshRecord() *Record {
	return &Record{
		AccountKind:  AccountPersonal,
		AccessToken:  "current-access",
		RefreshToken: "current-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       []string{"Tasks.ReadWrite"},
		State:        StateAuthorized,
	}
}

func expiredRecord() *Record {
	record := freshRecord()
	record.ExpiresAt = time.Now().Add(-10 * time.Minute)
	return record
}

func TestCoordinator_EnsureFresh_NoNetworkWhenFresh(t *testing.T) {
	flow := &stubFlow{}
	coord := NewCoordinator(storeWith(t, freshRecord()), flow, "", nil)

	record, err := coord.EnsureFresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "current-access", record.AccessToken)
	assert.Equal(t, int64(0), flow.refreshCalls.Load())
}

func TestCoordinator_EnsureFresh_RefreshesWhenExpired(t *testing.T) {
	flow := &stubFlow{}
	store := storeWith(t, expiredRecord())
	coord := NewCoordinator(store, flow, "", nil)

	record, err := coord.EnsureFresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-1", record.AccessToken)
	assert.Equal(t, int64(1), flow.refreshCalls.Load())

	// The rotated refresh token was persisted.
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-refresh-1", persisted.RefreshToken)
}

func TestCoordinator_EnsureFresh_ForcedRefresh(t *testing.T) {
	flow := &stubFlow{}
	coord := NewCoordinator(storeWith(t, freshRecord()), flow, "", nil)

	record, err := coord.EnsureFresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-1", record.AccessToken)
	assert.Equal(t, int64(1), flow.refreshCalls.Load())
}

// ctxAwareFlow aborts its refresh when the context it received is already
// done, the way a real HTTP transport would.
type ctxAwareFlow struct {
	stubFlow
}

func (f *ctxAwareFlow) Refresh(ctx context.Context, record *Record) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransientAuthError{Err: err}
	}
	return f.stubFlow.Refresh(ctx, record)
}

func TestCoordinator_EnsureFresh_SurvivesCallerCancellation(t *testing.T) {
	flow := &ctxAwareFlow{}
	store := storeWith(t, expiredRecord())
	coord := NewCoordinator(store, flow, "", nil)

	// The shared refresh must not die with the caller that happened to
	// start the flight.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := coord.EnsureFresh(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-1", record.AccessToken)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-refresh-1", persisted.RefreshToken)
}

func TestCoordinator_EnsureFresh_SingleFlight(t *testing.T) {
	flow := &stubFlow{refreshDelay: 50 * time.Millisecond}
	coord := NewCoordinator(storeWith(t, expiredRecord()), flow, "", nil)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]*Record, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.EnsureFresh(context.Background(), false)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), flow.refreshCalls.Load(),
		"concurrent callers must share one refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-access-1", results[i].AccessToken)
	}
}

func TestCoordinator_EnsureFresh_InvalidGrantMarksRecord(t *testing.T) {
	flow := &stubFlow{refreshErr: fmt.Errorf("%w: AADSTS70008", ErrInvalidGrant)}
	store := storeWith(t, expiredRecord())
	coord := NewCoordinator(store, flow, "", nil)

	_, err := coord.EnsureFresh(context.Background(), false)
	assert.ErrorIs(t, err, ErrReauthorizationRequired)

	persisted, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Equal(t, StateRefreshFailed, persisted.State)
	// Only the state marker changed; the tokens stay as they were.
	assert.Equal(t, "current-refresh", persisted.RefreshToken)
}

func TestCoordinator_EnsureFresh_TransientFailureKeepsRecord(t *testing.T) {
	flow := &stubFlow{refreshErr: &TransientAuthError{Err: errors.New("connection reset")}}
	store := storeWith(t, expiredRecord())
	coord := NewCoordinator(store, flow, "", nil)

	_, err := coord.EnsureFresh(context.Background(), false)
	var transient *TransientAuthError
	assert.ErrorAs(t, err, &transient)

	persisted, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Equal(t, StateAuthorized, persisted.State)
}

func TestCoordinator_EnsureFresh_NoCredentials(t *testing.T) {
	coord := NewCoordinator(NewMemoryStore(), &stubFlow{}, "", nil)

	_, err := coord.EnsureFresh(context.Background(), false)
	assert.ErrorIs(t, err, ErrReauthorizationRequired)
}

func TestCoordinator_EnsureFresh_RefusesAfterRefreshFailed(t *testing.T) {
	record := expiredRecord()
	record.State = StateRefreshFailed
	flow := &stubFlow{}
	coord := NewCoordinator(storeWith(t, record), flow, "", nil)

	_, err := coord.EnsureFresh(context.Background(), false)
	assert.ErrorIs(t, err, ErrReauthorizationRequired)
	assert.Equal(t, int64(0), flow.refreshCalls.Load(),
		"a dead grant must not be retried")
}

func TestCoordinator_EnsureFresh_MissingScopes(t *testing.T) {
	record := freshRecord()
	record.Scopes = []string{"User.Read"}
	coord := NewCoordinator(storeWith(t, record), &stubFlow{}, "", nil)

	_, err := coord.EnsureFresh(context.Background(), false)
	assert.ErrorIs(t, err, ErrMissingScopes)
}

func TestCoordinator_Authorize_ResetsFailedRecord(t *testing.T) {
	record := expiredRecord()
	record.State = StateRefreshFailed
	store := storeWith(t, record)
	coord := NewCoordinator(store, &stubFlow{}, "", nil)

	authorized, err := coord.Authorize(context.Background(), "auth-code-1")
	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, authorized.State)
	assert.Equal(t, "exchanged-refresh", authorized.RefreshToken)

	persisted, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Equal(t, StateAuthorized, persisted.State)

	// The record now serves requests again.
	result, err := coord.EnsureFresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "exchanged-access", result.AccessToken)
}

func TestCoordinator_AuthCodeURL_FreshStatePerCall(t *testing.T) {
	coord := NewCoordinator(NewMemoryStore(), &stubFlow{}, "", nil)

	url1, state1 := coord.AuthCodeURL()
	url2, state2 := coord.AuthCodeURL()

	assert.NotEqual(t, state1, state2)
	assert.Contains(t, url1, state1)
	assert.Contains(t, url2, state2)
}
