// api_key_expiry.go implements the APIKeyExpirySweeper background job, which periodically
// deactivates API keys whose expires_at has passed. Validation already refuses expired
// keys, so the sweep only keeps is_active truthful for listings and audit review; missing
// a run is harmless.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/component-request-system/crs/internal/safego"
	"github.com/component-request-system/crs/internal/telemetry"
)

// DefaultSweepInterval is used when Start is given a non-positive interval
const DefaultSweepInterval = time.Hour

// ExpiredKeyDeactivator flips is_active off for keys that expired before now
type ExpiredKeyDeactivator interface {
	DeactivateExpiredKeys(ctx context.Context, now time.Time) (int64, error)
}

// APIKeyExpirySweeper periodically deactivates expired API keys.
type APIKeyExpirySweeper struct {
	keys     ExpiredKeyDeactivator
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewAPIKeyExpirySweeper creates a sweeper over keys.
func NewAPIKeyExpirySweeper(keys ExpiredKeyDeactivator) *APIKeyExpirySweeper {
	return &APIKeyExpirySweeper{
		keys:     keys,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in the background. It runs one sweep immediately,
// then repeats every interval until ctx is cancelled or Stop is called.
func (s *APIKeyExpirySweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("API key expiry sweeper started", "interval", interval)

	safego.Go(func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.RunOnce(ctx)
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stopChan:
				slog.Info("API key expiry sweeper stopped")
				return
			case <-ctx.Done():
				slog.Info("API key expiry sweeper context cancelled")
				return
			}
		}
	})
}

// Stop signals the loop to exit. It is safe to call more than once; use Wait to
// block until an in-flight sweep has finished.
func (s *APIKeyExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Wait blocks until the loop started by Start has exited or ctx is done.
func (s *APIKeyExpirySweeper) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep and returns how many keys were deactivated.
func (s *APIKeyExpirySweeper) RunOnce(ctx context.Context) int64 {
	n, err := s.keys.DeactivateExpiredKeys(ctx, s.now().UTC())
	if err != nil {
		slog.Error("API key expiry sweeper: failed to deactivate expired keys", "error", err)
		return 0
	}
	if n > 0 {
		telemetry.APIKeysDeactivatedTotal.Add(float64(n))
		slog.Info("API key expiry sweeper: deactivated expired keys", "count", n)
	}
	return n
}
