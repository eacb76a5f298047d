package models

import "strings"

// ContactData holds the fields of a contact form submission.
// Company is the only optional field.
type ContactData struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=7,max=20"`
	Company string `json:"company,omitempty" validate:"max=100"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

// NormalizeIdentity canonicalizes an email address for use as a
// throttling/OTP/submission key: trimmed and case-folded.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity returns the normalized email address of the submitter.
func (c ContactData) Identity() string {
	return NormalizeIdentity(c.Email)
}
