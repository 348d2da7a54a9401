package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"todohub/internal/msauth"
)

// Refresher is the slice of the refresh coordinator the scheduler needs.
type Refresher interface {
	EnsureFresh(ctx context.Context, force bool) (*msauth.Record, error)
}

// DefaultInterval keeps the check frequent enough that a one-hour access
// token is renewed well inside its expiry margin.
const DefaultInterval = 5 * time.Minute

// Scheduler proactively keeps the stored access token fresh, so user
// requests rarely pay the refresh latency and the refresh token keeps
// rotating even during quiet periods.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	stopChan  chan struct{}
	logger    *slog.Logger
}

// NewScheduler creates a refresh scheduler.
func NewScheduler(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called.
func (s *Scheduler) Start() {
	s.logger.Info("Token refresh scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			s.logger.Info("Token refresh scheduler stopped")
			return
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// tick performs one freshness check. EnsureFresh decides whether a network
// call is needed; an unexpired token makes the tick free.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	record, err := s.refresher.EnsureFresh(ctx, false)
	if err != nil {
		switch {
		case errors.Is(err, msauth.ErrReauthorizationRequired):
			// Nothing the scheduler can do; the user has to reauthorize
			// through the bot.
			s.logger.Debug("Skipping proactive refresh, reauthorization required")
		default:
			s.logger.Warn("Proactive token refresh failed", "error", err)
		}
		return
	}

	s.logger.Debug("Token freshness verified", "expires_at", record.ExpiresAt)
}
