package auth

import (
	"context"
	"time"

	"tenauth.org/internal/obs"
)

const defaultSweepInterval = time.Hour

// Sweeper deletes expired refresh token rows out of band. It runs
// independently of request handling and holds no locks that could block
// live rotation.
type Sweeper struct {
	tokens   RefreshTokenStore
	interval time.Duration
	now      func() time.Time
}

// NewSweeper constructs a sweeper over the refresh token store.
func NewSweeper(tokens RefreshTokenStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{tokens: tokens, interval: interval, now: time.Now}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.now().UTC()
	deleted, err := s.tokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		obs.LogRequest(map[string]any{
			"ts":    cutoff.Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "refresh_token_sweep_failed",
			"error": err.Error(),
		})
		return
	}
	if deleted > 0 {
		obs.LogRequest(map[string]any{
			"ts":      cutoff.Format(time.RFC3339Nano),
			"level":   "info",
			"msg":     "refresh_token_sweep",
			"deleted": deleted,
		})
	}
}
