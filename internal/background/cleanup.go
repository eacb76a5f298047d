package background

import (
	"context"
	"log/slog"
	"time"
)

// OtpPruner removes expired verification codes.
type OtpPruner interface {
	PruneExpired() int
}

// RateWindowPruner removes elapsed rate limit windows.
type RateWindowPruner interface {
	PruneStale() int
}

// SubmissionPruner removes submissions that will never verify.
type SubmissionPruner interface {
	PruneAbandoned(ctx context.Context, olderThan time.Time) (int64, error)
}

// CleanupManager periodically prunes expired codes, elapsed rate limit
// windows and abandoned pending submissions.
type CleanupManager struct {
	otp         OtpPruner
	rateLimiter RateWindowPruner
	submissions SubmissionPruner

	logger       *slog.Logger
	interval     time.Duration
	abandonedAge time.Duration
	stopCh       chan struct{}
}

// NewCleanupManager creates a new cleanup manager. abandonedAge is how
// long a pending submission may sit unverified before being pruned.
func NewCleanupManager(
	otp OtpPruner,
	rateLimiter RateWindowPruner,
	submissions SubmissionPruner,
	logger *slog.Logger,
	interval time.Duration,
	abandonedAge time.Duration,
) *CleanupManager {
	return &CleanupManager{
		otp:          otp,
		rateLimiter:  rateLimiter,
		submissions:  submissions,
		logger:       logger,
		interval:     interval,
		abandonedAge: abandonedAge,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	expiredCodes := cm.otp.PruneExpired()
	staleWindows := cm.rateLimiter.PruneStale()

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pruned, err := cm.submissions.PruneAbandoned(cleanupCtx, time.Now().Add(-cm.abandonedAge))
	if err != nil {
		cm.logger.Error("failed to prune abandoned submissions", slog.Any("error", err))
	}

	if expiredCodes > 0 || staleWindows > 0 || pruned > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int("expired_codes", expiredCodes),
			slog.Int("stale_windows", staleWindows),
			slog.Int64("abandoned_submissions", pruned))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
