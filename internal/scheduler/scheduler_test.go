package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"todohub/internal/msauth"
)

type stubRefresher struct {
	calls atomic.Int64
	err   error
}

func (s *stubRefresher) EnsureFresh(ctx context.Context, force bool) (*msauth.Record, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &msauth.Record{
		State:     msauth.StateAuthorized,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func TestSchedulerTicksUntilStopped(t *testing.T) {
	refresher := &stubRefresher{}
	scheduler := NewScheduler(refresher, 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		scheduler.Start()
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return refresher.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerSurvivesRefreshErrors(t *testing.T) {
	refresher := &stubRefresher{err: msauth.ErrReauthorizationRequired}
	scheduler := NewScheduler(refresher, 10*time.Millisecond, nil)

	go scheduler.Start()
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		return refresher.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	scheduler := NewScheduler(&stubRefresher{}, 0, nil)
	assert.Equal(t, DefaultInterval, scheduler.interval)
}
