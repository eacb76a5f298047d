package models

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// RecipientState is the delivery state of a single recipient within a job.
type RecipientState string

const (
	RecipientPending RecipientState = "pending"
	RecipientSent    RecipientState = "sent"
	RecipientFailed  RecipientState = "failed"
)

// RecipientStatus tracks the terminal outcome for one recipient.
type RecipientStatus struct {
	State  RecipientState `json:"state"`
	Reason string         `json:"reason,omitempty"`
}

// Attachment is a file included with an outbound email.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// EmailJob is a logical outbound message: one or more recipients,
// destroyed once every recipient reaches a terminal status or the job
// is abandoned after exhausting retries.
type EmailJob struct {
	ID          string       `json:"id"`
	Recipients  []string     `json:"recipients"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"-"`
	TextBody    string       `json:"-"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewEmailJob creates a job with a ULID id, lexicographically sortable
// by creation time.
func NewEmailJob(recipients []string, subject, htmlBody, textBody string) *EmailJob {
	return &EmailJob{
		ID:         ulid.MustNew(ulid.Now(), rand.Reader).String(),
		Recipients: recipients,
		Subject:    subject,
		HTMLBody:   htmlBody,
		TextBody:   textBody,
	}
}
