package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

// HousekeepingService periodically deletes expired single-use and token
// records so the tables do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass and returns the number of rows deleted. Each
// table is cleaned independently; a failure in one does not stop the rest.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := clock(s.Now)

	tasks := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"authorization_requests", s.Store.AuthorizationRequests().DeleteExpiredAuthorizationRequests},
		{"authorization_codes", s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes},
		{"oauth_states", s.Store.OAuthStates().DeleteExpiredOAuthStates},
		{"login_sessions", s.Store.LoginSessions().DeleteExpiredLoginSessions},
		{"access_tokens", s.Store.AccessTokens().DeleteExpiredAccessTokens},
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
	}

	var total int64
	for _, t := range tasks {
		n, err := t.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping failed", "table", t.name, "error", err)
			continue
		}
		if n > 0 {
			s.Logger.Debug("deleted expired rows", "table", t.name, "count", n)
		}
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
