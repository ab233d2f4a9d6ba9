package coach

import (
	"context"
	"time"
)

// SweeperConfig controls StartSweeper.
type SweeperConfig struct {
	Interval    time.Duration
	ResidentTTL time.Duration // evict in-memory sessions idle this long, 0 disables
	Retention   time.Duration // delete stored sessions not updated this long, 0 disables
}

// StartSweeper periodically evicts idle resident sessions and deletes stored
// sessions past retention until ctx is done. The returned channel closes when
// the worker exits.
func (s *Service) StartSweeper(ctx context.Context, cfg SweeperConfig) <-chan struct{} {
	done := make(chan struct{})
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		s.logger.Info("session sweeper started",
			"interval", cfg.Interval,
			"resident_ttl", cfg.ResidentTTL,
			"retention", cfg.Retention)

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx, cfg)
			case <-ctx.Done():
				s.logger.Info("session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func (s *Service) sweep(ctx context.Context, cfg SweeperConfig) {
	if cfg.ResidentTTL > 0 {
		if n := s.EvictIdle(cfg.ResidentTTL); n > 0 {
			s.logger.Debug("evicted idle sessions", "count", n, "resident", s.ResidentSessions())
		}
	}
	if cfg.Retention > 0 {
		n, err := s.repo.CleanupExpiredSessions(ctx, cfg.Retention)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("failed to clean up expired sessions", "error", err)
			}
			return
		}
		if n > 0 {
			s.logger.Info("removed expired sessions", "count", n)
		}
	}
}
