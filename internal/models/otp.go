package models

import (
	"time"
)

// OtpRecord is the single active one-time passcode for an identity.
// Issuing a new code overwrites the previous record; there is never
// more than one valid code per identity.
type OtpRecord struct {
	Identity     string    `json:"identity"`
	Code         string    `json:"-"` // never expose the raw code
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	AttemptsUsed int       `json:"attempts_used"`
	MaxAttempts  int       `json:"max_attempts"`
	Consumed     bool      `json:"consumed"`
}

// IsExpired checks if the code has passed its expiry time.
func (r *OtpRecord) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsConsumed checks if the code has already been used successfully.
func (r *OtpRecord) IsConsumed() bool {
	return r.Consumed
}

// IsActive checks if the record can still accept verification attempts.
func (r *OtpRecord) IsActive() bool {
	return !r.IsExpired() && !r.Consumed && r.AttemptsUsed < r.MaxAttempts
}

// MaskedCode returns the code with all but the last 3 digits hidden,
// for debug introspection only.
func (r *OtpRecord) MaskedCode() string {
	if len(r.Code) < 3 {
		return "***"
	}
	return "***" + r.Code[len(r.Code)-3:]
}
