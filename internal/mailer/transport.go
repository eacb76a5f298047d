package mailer

import (
	"context"
	"errors"

	"github.com/stockify/contact-api/internal/models"
)

// Message is the content of an outbound email, shared across all
// recipients of a job.
type Message struct {
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []models.Attachment
}

// Transport delivers a message to a single recipient. Implementations
// classify failures as transient or permanent via Transient/Permanent;
// that classification is authoritative for the dispatch engine.
type Transport interface {
	Send(ctx context.Context, recipient string, msg *Message) error
}

// classifiedError wraps a transport failure with its retry semantics.
type classifiedError struct {
	err       error
	permanent bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable (invalid address, rejected
// by remote, auth failure).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, permanent: true}
}

// Transient marks an error as retryable (network blip, throttling,
// transport temporarily unavailable).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, permanent: false}
}

// IsPermanent reports whether the error was classified permanent.
// Unclassified errors are not permanent: the engine retries them.
func IsPermanent(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.permanent
}

// IsTransient reports whether retrying the send may succeed.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err)
}
