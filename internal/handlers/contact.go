package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stockify/contact-api/internal/models"
	"github.com/stockify/contact-api/internal/services"
	pkghttp "github.com/stockify/contact-api/pkg/http"
)

// ContactServiceInterface defines the interface for the contact flow
type ContactServiceInterface interface {
	RequestOTP(ctx context.Context, contact models.ContactData) (*services.RequestOTPResult, error)
	ResendOTP(ctx context.Context, email string) (*services.RequestOTPResult, error)
	VerifyAndSubmit(ctx context.Context, code string, contact models.ContactData) (*services.VerifyResult, error)
}

// ContactHandler handles the contact form HTTP requests
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// Request DTOs

// RequestOTPRequest represents the request body for requesting a verification code
type RequestOTPRequest struct {
	models.ContactData
}

// VerifySubmitRequest represents the request body for verifying and submitting
type VerifySubmitRequest struct {
	models.ContactData
	Otp string `json:"otp" validate:"required,numeric,len=6"`
}

// ResendOTPRequest represents the request body for resending the verification code
type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestOTP handles a new contact submission and sends the verification code
// @Summary Request verification code
// @Accept json
// @Param request body RequestOTPRequest true "Contact data"
// @Produce json
// @Router /api/contact/request-otp [post]
func (h *ContactHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req.ContactData); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RequestOTP(r.Context(), req.ContactData)
	if err != nil {
		writeContactError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Verification code sent to your email", result)
}

// VerifyAndSubmit handles code verification and finalizes the submission
// @Summary Verify code and submit
// @Accept json
// @Param request body VerifySubmitRequest true "Contact data with verification code"
// @Produce json
// @Router /api/contact/verify-submit [post]
func (h *ContactHandler) VerifyAndSubmit(w http.ResponseWriter, r *http.Request) {
	var req VerifySubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req.ContactData); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if err := ValidateRequest(struct {
		Otp string `validate:"required,numeric,len=6"`
	}{Otp: req.Otp}); err != nil {
		pkghttp.WriteBadRequest(w, "Verification code must be 6 digits")
		return
	}

	result, err := h.service.VerifyAndSubmit(r.Context(), req.Otp, req.ContactData)
	if err != nil {
		writeContactError(w, err)
		return
	}

	message := "Your message has been submitted successfully"
	if result.Degraded {
		message = "Your message has been submitted; some notification emails could not be delivered"
	}
	pkghttp.WriteSuccess(w, http.StatusOK, message, result)
}

// ResendOTP handles reissuing the verification code for a pending submission
// @Summary Resend verification code
// @Accept json
// @Param request body ResendOTPRequest true "Email address"
// @Produce json
// @Router /api/contact/resend-otp [post]
func (h *ContactHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ResendOTP(r.Context(), req.Email)
	if err != nil {
		writeContactError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "A new verification code has been sent to your email", result)
}

// writeContactError maps service errors to distinct HTTP responses so
// the client can tell re-entry, resend and retry-later cases apart.
func writeContactError(w http.ResponseWriter, err error) {
	var rateErr *models.RateLimitedError

	switch {
	case errors.As(err, &rateErr):
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.", rateErr.RetryAfter)
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.", 0)
	case errors.Is(err, models.ErrOtpInvalid):
		pkghttp.WriteUnauthorized(w, "The verification code is incorrect")
	case errors.Is(err, models.ErrOtpExpired):
		pkghttp.WriteUnauthorized(w, "The verification code has expired. Please request a new one.")
	case errors.Is(err, models.ErrOtpAttemptsExhausted):
		pkghttp.WriteUnauthorized(w, "Too many incorrect attempts. Please request a new code.")
	case errors.Is(err, models.ErrOtpNotFound):
		pkghttp.WriteUnauthorized(w, "No active verification code. Please request a new one.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "No pending submission found for this email")
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteBadGateway(w, "We could not send the verification email. Please try again later.")
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
