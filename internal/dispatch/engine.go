package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/stockify/contact-api/internal/mailer"
	"github.com/stockify/contact-api/internal/models"
	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// Config holds dispatch engine tuning.
type Config struct {
	MaxRetries     int           // retries after the first attempt, transient failures only
	BackoffBase    time.Duration // first retry delay, doubled per attempt
	BackoffCap     time.Duration // ceiling on the retry delay
	Workers        int           // concurrent sends per job
	Timeout        time.Duration // overall wait before unresolved recipients report as failed
	SendsPerSecond float64       // outbound pacing across all attempts
}

// DefaultConfig returns the documented defaults: 3 retries, 1s base
// doubling to a 30s cap, 4 workers, 2 minute overall timeout.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BackoffBase:    1 * time.Second,
		BackoffCap:     30 * time.Second,
		Workers:        4,
		Timeout:        2 * time.Minute,
		SendsPerSecond: 10,
	}
}

// Result summarizes a dispatched job: counts plus the detailed
// per-recipient outcome map.
type Result struct {
	JobID      string                            `json:"job_id"`
	Sent       int                               `json:"sent"`
	Failed     int                               `json:"failed"`
	Recipients map[string]models.RecipientStatus `json:"recipients"`
}

// AllSent reports whether every recipient reached Sent.
func (r *Result) AllSent() bool { return r.Failed == 0 && r.Sent > 0 }

// AllFailed reports whether no recipient reached Sent.
func (r *Result) AllFailed() bool { return r.Sent == 0 }

// Engine turns a logical EmailJob into one send attempt per recipient
// against the mail transport, with retry/backoff for transient failures
// and partial-failure isolation for bulk jobs.
type Engine struct {
	transport mailer.Transport
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewEngine creates a dispatch engine over the given transport.
func NewEngine(transport mailer.Transport, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SendsPerSecond <= 0 {
		cfg.SendsPerSecond = 10
	}
	return &Engine{
		transport: transport,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), cfg.Workers),
		logger:    logger,
	}
}

type recipientOutcome struct {
	recipient string
	status    models.RecipientStatus
}

// Dispatch processes the job's recipients independently through a
// bounded worker pool. A failure for one recipient never aborts the
// others. When the overall timeout elapses, recipients that have not
// resolved are reported Failed(reason=timeout); their in-flight
// attempts are not canceled.
func (e *Engine) Dispatch(ctx context.Context, job *models.EmailJob) *Result {
	result := &Result{
		JobID:      job.ID,
		Recipients: make(map[string]models.RecipientStatus, len(job.Recipients)),
	}

	if err := validateAttachments(job.Attachments); err != nil {
		// Attachment problems are permanent and affect every recipient
		for _, recipient := range job.Recipients {
			result.Recipients[recipient] = models.RecipientStatus{
				State:  models.RecipientFailed,
				Reason: err.Error(),
			}
			result.Failed++
		}
		e.logger.Error("dispatch rejected", slog.String("job_id", job.ID), slog.Any("error", err))
		return result
	}

	msg := &mailer.Message{
		Subject:     job.Subject,
		HTMLBody:    job.HTMLBody,
		TextBody:    job.TextBody,
		Attachments: job.Attachments,
	}

	// Sends continue past the caller's deadline; the timeout below only
	// bounds how long we wait for outcomes.
	sendCtx := context.WithoutCancel(ctx)

	work := make(chan string)
	outcomes := make(chan recipientOutcome, len(job.Recipients))

	workers := e.cfg.Workers
	if workers > len(job.Recipients) {
		workers = len(job.Recipients)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for recipient := range work {
				outcomes <- recipientOutcome{
					recipient: recipient,
					status:    e.sendWithRetry(sendCtx, recipient, msg),
				}
			}
		}()
	}

	go func() {
		for _, recipient := range job.Recipients {
			work <- recipient
		}
		close(work)
		wg.Wait()
		close(outcomes)
	}()

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	pending := len(job.Recipients)
collect:
	for pending > 0 {
		select {
		case outcome, ok := <-outcomes:
			if !ok {
				break collect
			}
			result.Recipients[outcome.recipient] = outcome.status
			if outcome.status.State == models.RecipientSent {
				result.Sent++
			} else {
				result.Failed++
			}
			pending--
		case <-timer.C:
			for _, recipient := range job.Recipients {
				if _, resolved := result.Recipients[recipient]; !resolved {
					result.Recipients[recipient] = models.RecipientStatus{
						State:  models.RecipientFailed,
						Reason: "dispatch timeout",
					}
					result.Failed++
				}
			}
			e.logger.Warn("dispatch timed out with unresolved recipients",
				slog.String("job_id", job.ID),
				slog.Int("unresolved", pending))
			break collect
		}
	}

	e.logger.Info("dispatch completed",
		slog.String("job_id", job.ID),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))
	return result
}

// sendWithRetry resolves one recipient to a terminal status. Transient
// failures are retried with exponential backoff plus jitter; permanent
// failures fail immediately.
func (e *Engine) sendWithRetry(ctx context.Context, recipient string, msg *mailer.Message) models.RecipientStatus {
	err := retry.Do(
		func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				return mailer.Transient(err)
			}
			return e.transport.Send(ctx, recipient, msg)
		},
		retry.Attempts(uint(e.cfg.MaxRetries)+1),
		retry.Delay(e.cfg.BackoffBase),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxDelay(e.cfg.BackoffCap),
		retry.MaxJitter(e.cfg.BackoffBase/2),
		retry.RetryIf(mailer.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("send attempt failed, retrying",
				slog.String("recipient", pkglogger.MaskEmail(recipient)),
				slog.Uint64("attempt", uint64(n)+1),
				slog.Any("error", err))
		}),
	)
	if err != nil {
		return models.RecipientStatus{
			State:  models.RecipientFailed,
			Reason: err.Error(),
		}
	}
	return models.RecipientStatus{State: models.RecipientSent}
}

func validateAttachments(attachments []models.Attachment) error {
	for i, att := range attachments {
		if att.Filename == "" {
			return fmt.Errorf("attachment %d has no filename", i)
		}
		if len(att.Content) == 0 {
			return fmt.Errorf("attachment %q has no content", att.Filename)
		}
	}
	return nil
}
