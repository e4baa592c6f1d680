package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// refreshTokenPurger deletes expired refresh-token rows.
type refreshTokenPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenSweeper periodically deletes expired refresh tokens. It owns its
// lifecycle explicitly: Start boots the ticker goroutine, Stop halts it,
// and Sweep can be invoked directly for deterministic tests. A failed
// sweep is logged and retried on the next interval, never fatal. Sweeps
// hold no lock that blocks foreground traffic, and a sweep that finds
// nothing is a no-op, so restarts are safe.
type TokenSweeper struct {
	repo     refreshTokenPurger
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTokenSweeper constructs a sweeper. A non-positive interval disables Start.
func NewTokenSweeper(repo refreshTokenPurger, interval time.Duration, logger *zap.Logger) *TokenSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSweeper{repo: repo, interval: interval, logger: logger}
}

// Start launches the periodic sweep loop. Calling Start twice is a no-op.
func (s *TokenSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(loopCtx)
			}
		}
	}()

	s.logger.Info("refresh token sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the sweep loop and waits for it to exit.
func (s *TokenSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep deletes tokens expired as of now. Errors are swallowed after
// logging so the loop survives transient store failures.
func (s *TokenSweeper) Sweep(ctx context.Context) {
	deleted, err := s.repo.DeleteExpiredRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("refresh token sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("purged expired refresh tokens", zap.Int64("deleted", deleted))
	}
}
