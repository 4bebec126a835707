package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/store"
)

// KeyRotator is the part of jwtx.KeyManager housekeeping needs.
type KeyRotator interface {
	Rotate() error
}

// HousekeepingService periodically deletes expired pending logins and
// refresh tokens, and optionally rotates the signing key.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Keys is rotated every RotateEvery when both are set.
	Keys        KeyRotator
	RotateEvery time.Duration

	Now func() time.Time

	lastRotation time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
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

// Start launches the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	s.lastRotation = s.now()
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single cleanup pass. Each step is independent; a
// failure is logged and the next step still runs.
func (s *HousekeepingService) RunOnce(ctx context.Context) {
	now := s.now()
	s.Logger.Debug("starting housekeeping cleanup")

	var deleted int64

	if n, err := s.Store.PendingLogins().DeleteExpiredPendingLogins(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired pending logins", "error", err)
	} else {
		deleted += n
	}

	if n, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else {
		deleted += n
	}

	if s.Keys != nil && s.RotateEvery > 0 && now.Sub(s.lastRotation) >= s.RotateEvery {
		if err := s.Keys.Rotate(); err != nil {
			s.Logger.Error("failed to rotate signing key", "error", err)
		} else {
			s.lastRotation = now
			s.Logger.Info("signing key rotated")
		}
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", deleted)
}
