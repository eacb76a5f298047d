package dispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockify/contact-api/internal/dispatch"
	"github.com/stockify/contact-api/internal/mailer"
	"github.com/stockify/contact-api/internal/models"
)

// MockTransport implements mailer.Transport for testing
type MockTransport struct {
	SendFunc func(ctx context.Context, recipient string, msg *mailer.Message) error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockTransport) Send(ctx context.Context, recipient string, msg *mailer.Message) error {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[recipient]++
	m.mu.Unlock()

	if m.SendFunc == nil {
		return nil
	}
	return m.SendFunc(ctx, recipient, msg)
}

func (m *MockTransport) Calls(recipient string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[recipient]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() dispatch.Config {
	return dispatch.Config{
		MaxRetries:     3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     5 * time.Millisecond,
		Workers:        4,
		Timeout:        5 * time.Second,
		SendsPerSecond: 10000,
	}
}

func testJob(recipients ...string) *models.EmailJob {
	return models.NewEmailJob(recipients, "Test subject", "<p>hello</p>", "hello")
}

func TestDispatchAllRecipientsSucceed(t *testing.T) {
	transport := &MockTransport{}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	job := testJob("a@example.com", "b@example.com", "c@example.com")
	result := engine.Dispatch(context.Background(), job)

	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.AllSent())
	for _, r := range job.Recipients {
		assert.Equal(t, models.RecipientSent, result.Recipients[r].State)
	}
}

func TestDispatchPartialFailureIsolation(t *testing.T) {
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			if recipient == "bad@example.com" {
				return mailer.Permanent(errors.New("address rejected"))
			}
			return nil
		},
	}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	job := testJob("a@example.com", "bad@example.com", "c@example.com")
	result := engine.Dispatch(context.Background(), job)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.AllSent())
	assert.False(t, result.AllFailed())

	assert.Equal(t, models.RecipientFailed, result.Recipients["bad@example.com"].State)
	assert.Contains(t, result.Recipients["bad@example.com"].Reason, "address rejected")
	assert.Equal(t, models.RecipientSent, result.Recipients["a@example.com"].State)
	assert.Equal(t, models.RecipientSent, result.Recipients["c@example.com"].State)
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return mailer.Transient(errors.New("throttled"))
			}
			return nil
		},
	}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	result := engine.Dispatch(context.Background(), testJob("a@example.com"))

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 3, transport.Calls("a@example.com"), "two transient failures then success")
}

func TestDispatchDoesNotRetryPermanentFailures(t *testing.T) {
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			return mailer.Permanent(errors.New("domain not verified"))
		},
	}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	result := engine.Dispatch(context.Background(), testJob("a@example.com"))

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, transport.Calls("a@example.com"), "permanent failures must not be retried")
}

func TestDispatchExhaustsRetriesOnPersistentTransientFailure(t *testing.T) {
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			return mailer.Transient(errors.New("connection reset"))
		},
	}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	result := engine.Dispatch(context.Background(), testJob("a@example.com"))

	assert.True(t, result.AllFailed())
	// Initial attempt plus MaxRetries
	assert.Equal(t, 4, transport.Calls("a@example.com"))
}

func TestDispatchUnclassifiedErrorsAreRetried(t *testing.T) {
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			return errors.New("something odd happened")
		},
	}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	result := engine.Dispatch(context.Background(), testJob("a@example.com"))

	assert.True(t, result.AllFailed())
	assert.Equal(t, 4, transport.Calls("a@example.com"), "unclassified errors default to retriable")
}

func TestDispatchTimeoutMarksUnresolvedFailed(t *testing.T) {
	release := make(chan struct{})
	transport := &MockTransport{
		SendFunc: func(ctx context.Context, recipient string, msg *mailer.Message) error {
			if recipient == "slow@example.com" {
				<-release
			}
			return nil
		},
	}
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	engine := dispatch.NewEngine(transport, cfg, testLogger())

	result := engine.Dispatch(context.Background(), testJob("fast@example.com", "slow@example.com"))
	close(release)

	assert.Equal(t, models.RecipientSent, result.Recipients["fast@example.com"].State)
	assert.Equal(t, models.RecipientFailed, result.Recipients["slow@example.com"].State)
	assert.Equal(t, "dispatch timeout", result.Recipients["slow@example.com"].Reason)
}

func TestDispatchContinuesPastCanceledCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &MockTransport{}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	result := engine.Dispatch(ctx, testJob("a@example.com"))

	assert.Equal(t, 1, result.Sent, "in-flight sends survive caller cancellation")
}

func TestDispatchRejectsInvalidAttachments(t *testing.T) {
	transport := &MockTransport{}
	engine := dispatch.NewEngine(transport, testConfig(), testLogger())

	job := testJob("a@example.com", "b@example.com")
	job.Attachments = []models.Attachment{{Filename: "", Content: []byte("data")}}

	result := engine.Dispatch(context.Background(), job)

	require.True(t, result.AllFailed())
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, transport.Calls("a@example.com"), "nothing is sent for an invalid job")
}
