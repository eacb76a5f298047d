package models

import "time"

// SubmissionStatus is the lifecycle state of a contact submission.
// Progression is forward-only: pending_verification → verified →
// dispatched, or → failed from any non-terminal state.
type SubmissionStatus string

const (
	StatusPendingVerification SubmissionStatus = "pending_verification"
	StatusVerified            SubmissionStatus = "verified"
	StatusDispatched          SubmissionStatus = "dispatched"
	StatusFailed              SubmissionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusDispatched || s == StatusFailed
}

// CanTransitionTo enforces the forward-only status progression.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	switch s {
	case StatusPendingVerification:
		return next == StatusVerified || next == StatusFailed
	case StatusVerified:
		return next == StatusDispatched || next == StatusFailed
	default:
		return false
	}
}

// Submission is a contact form submission owned by the submission store
// from creation until dispatch completes or fails terminally.
type Submission struct {
	ID        string           `json:"id" db:"id"`
	Contact   ContactData      `json:"contact"`
	Status    SubmissionStatus `json:"status" db:"status"`
	Degraded  bool             `json:"degraded" db:"degraded"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}
