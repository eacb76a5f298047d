package background_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stockify/contact-api/internal/background"
)

type fakeOtpPruner struct{ calls atomic.Int64 }

func (f *fakeOtpPruner) PruneExpired() int {
	f.calls.Add(1)
	return 1
}

type fakeWindowPruner struct{ calls atomic.Int64 }

func (f *fakeWindowPruner) PruneStale() int {
	f.calls.Add(1)
	return 0
}

type fakeSubmissionPruner struct{ calls atomic.Int64 }

func (f *fakeSubmissionPruner) PruneAbandoned(ctx context.Context, olderThan time.Time) (int64, error) {
	f.calls.Add(1)
	return 2, nil
}

func TestCleanupRunsOnStartupAndPeriodically(t *testing.T) {
	otp := &fakeOtpPruner{}
	windows := &fakeWindowPruner{}
	subs := &fakeSubmissionPruner{}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cm := background.NewCleanupManager(otp, windows, subs, logger, 20*time.Millisecond, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return otp.calls.Load() >= 2 && windows.calls.Load() >= 2 && subs.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cm.Stop()
	<-done
}

func TestCleanupStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cm := background.NewCleanupManager(&fakeOtpPruner{}, &fakeWindowPruner{}, &fakeSubmissionPruner{}, logger, time.Hour, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop on context cancellation")
	}
}
