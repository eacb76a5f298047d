package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockify/contact-api/internal/dispatch"
	"github.com/stockify/contact-api/internal/mailer"
	"github.com/stockify/contact-api/internal/models"
	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// OtpManager issues and verifies one-time passcodes.
type OtpManager interface {
	Issue(identity string) (*models.OtpRecord, error)
	Verify(identity, code string) error
	Resend(identity string) (*models.OtpRecord, error)
}

// SubmissionStore persists contact submissions and their status.
type SubmissionStore interface {
	Create(ctx context.Context, contact models.ContactData) (*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	GetOutstandingByEmail(ctx context.Context, email string) (*models.Submission, error)
	Transition(ctx context.Context, id string, newStatus models.SubmissionStatus) error
	SetDegraded(ctx context.Context, id string) error
	UpdateContact(ctx context.Context, id string, contact models.ContactData) error
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, n int) ([]models.Submission, error)
}

// Dispatcher delivers an email job and reports per-recipient outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.EmailJob) *dispatch.Result
}

// RequestOTPResult is returned from a successful RequestOTP call.
// DebugCode is populated only when debug exposure was enabled at
// construction; it is never set in production.
type RequestOTPResult struct {
	SubmissionID string `json:"submission_id"`
	ExpiresIn    int    `json:"expires_in_seconds"`
	DebugCode    string `json:"debug_code,omitempty"`
}

// VerifyResult is returned from a successful VerifyAndSubmit call.
type VerifyResult struct {
	SubmissionID string           `json:"submission_id"`
	Degraded     bool             `json:"degraded"`
	Confirmation *dispatch.Result `json:"confirmation"`
	AdminNotice  *dispatch.Result `json:"admin_notice"`
}

// Stats is the debug snapshot of in-memory and stored state.
type Stats struct {
	ActiveOtpRecords  int                 `json:"active_otp_records"`
	RateLimitEntries  int                 `json:"rate_limit_entries"`
	TotalSubmissions  int                 `json:"total_submissions"`
	MaskedCodes       map[string]string   `json:"masked_codes"`
	RecentSubmissions []models.Submission `json:"recent_submissions"`
}

// ContactService orchestrates the request-verify-submit flow. Identity
// level work is serialized through a keyed mutex, which is always
// released before any email send.
type ContactService struct {
	otp         OtpManager
	submissions SubmissionStore
	dispatcher  Dispatcher
	rateLimiter *RateLimitService
	locks       *KeyedMutex

	adminAddresses []string
	otpTTL         time.Duration
	exposeDebug    bool
	logger         *slog.Logger
}

// NewContactService creates a new ContactService. exposeDebug controls
// whether RequestOTP returns the raw code in its result; callers must
// force it off outside development.
func NewContactService(
	otp OtpManager,
	submissions SubmissionStore,
	dispatcher Dispatcher,
	rateLimiter *RateLimitService,
	adminAddresses []string,
	otpTTL time.Duration,
	exposeDebug bool,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		otp:            otp,
		submissions:    submissions,
		dispatcher:     dispatcher,
		rateLimiter:    rateLimiter,
		locks:          NewKeyedMutex(),
		adminAddresses: adminAddresses,
		otpTTL:         otpTTL,
		exposeDebug:    exposeDebug,
		logger:         logger,
	}
}

// RequestOTP records a pending submission for the contact data and
// emails a verification code to the contact's address. The submission
// replaces any outstanding one for the same identity.
func (s *ContactService) RequestOTP(ctx context.Context, contact models.ContactData) (*RequestOTPResult, error) {
	identity := contact.Identity()

	unlock := s.locks.Lock(identity)

	sub, err := s.submissions.Create(ctx, contact)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("creating submission: %w", err)
	}

	rec, err := s.otp.Issue(identity)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := s.sendOTPEmail(ctx, contact, rec.Code); err != nil {
		return nil, err
	}

	result := &RequestOTPResult{
		SubmissionID: sub.ID,
		ExpiresIn:    int(s.otpTTL.Seconds()),
	}
	if s.exposeDebug {
		result.DebugCode = rec.Code
	}
	return result, nil
}

// ResendOTP reissues the verification code for an identity with an
// outstanding submission and emails it again. The reissue invalidates
// the previous code and counts against the issuance rate limit.
func (s *ContactService) ResendOTP(ctx context.Context, email string) (*RequestOTPResult, error) {
	identity := models.NormalizeIdentity(email)

	unlock := s.locks.Lock(identity)

	sub, err := s.submissions.GetOutstandingByEmail(ctx, identity)
	if err != nil {
		unlock()
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrOtpNotFound
		}
		return nil, fmt.Errorf("looking up outstanding submission: %w", err)
	}

	rec, err := s.otp.Resend(identity)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := s.sendOTPEmail(ctx, sub.Contact, rec.Code); err != nil {
		return nil, err
	}

	result := &RequestOTPResult{
		SubmissionID: sub.ID,
		ExpiresIn:    int(s.otpTTL.Seconds()),
	}
	if s.exposeDebug {
		result.DebugCode = rec.Code
	}
	return result, nil
}

// VerifyAndSubmit consumes the verification code, finalizes the
// outstanding submission with the contact data from this request, and
// dispatches the confirmation and admin notification emails. Partial
// delivery failure marks the submission degraded but does not fail the
// request; the submission still reaches dispatched.
func (s *ContactService) VerifyAndSubmit(ctx context.Context, code string, contact models.ContactData) (*VerifyResult, error) {
	identity := contact.Identity()

	if !s.rateLimiter.Allow(identity, OpSubmit) {
		return nil, &models.RateLimitedError{
			RetryAfter: s.rateLimiter.RetryAfter(identity, OpSubmit),
		}
	}

	unlock := s.locks.Lock(identity)

	if err := s.otp.Verify(identity, code); err != nil {
		unlock()
		return nil, err
	}

	sub, err := s.submissions.GetOutstandingByEmail(ctx, identity)
	if err != nil {
		unlock()
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no outstanding submission", models.ErrNotFound)
		}
		return nil, fmt.Errorf("looking up outstanding submission: %w", err)
	}

	// The user may have edited fields between requesting the code and
	// verifying; the verified request wins.
	if err := s.submissions.UpdateContact(ctx, sub.ID, contact); err != nil {
		unlock()
		return nil, fmt.Errorf("updating submission contact data: %w", err)
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusVerified); err != nil {
		unlock()
		return nil, fmt.Errorf("marking submission verified: %w", err)
	}
	unlock()

	confirmMsg := mailer.ConfirmationMessage(contact)
	confirmJob := models.NewEmailJob([]string{identity}, confirmMsg.Subject, confirmMsg.HTMLBody, confirmMsg.TextBody)
	confirmRes := s.dispatcher.Dispatch(ctx, confirmJob)

	adminMsg := mailer.AdminNotificationMessage(contact)
	adminJob := models.NewEmailJob(s.adminAddresses, adminMsg.Subject, adminMsg.HTMLBody, adminMsg.TextBody)
	adminRes := s.dispatcher.Dispatch(ctx, adminJob)

	degraded := confirmRes.Failed > 0 || adminRes.Failed > 0

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusDispatched); err != nil {
		return nil, fmt.Errorf("marking submission dispatched: %w", err)
	}
	if degraded {
		if err := s.submissions.SetDegraded(ctx, sub.ID); err != nil {
			s.logger.Error("failed to flag degraded submission",
				slog.String("submission_id", sub.ID), slog.Any("error", err))
		}
		s.logger.Warn("submission dispatched with delivery failures",
			slog.String("submission_id", sub.ID),
			slog.Int("confirmation_failed", confirmRes.Failed),
			slog.Int("admin_failed", adminRes.Failed))
	}

	s.logger.Info("submission completed",
		slog.String("submission_id", sub.ID),
		slog.String("identity", pkglogger.MaskEmail(identity)),
		slog.Bool("degraded", degraded))

	return &VerifyResult{
		SubmissionID: sub.ID,
		Degraded:     degraded,
		Confirmation: confirmRes,
		AdminNotice:  adminRes,
	}, nil
}

// Stats assembles the debug snapshot. Raw codes are masked; the
// endpoint exposing this is only mounted when debug routes are enabled.
func (s *ContactService) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.submissions.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting submissions: %w", err)
	}
	recent, err := s.submissions.Recent(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("listing recent submissions: %w", err)
	}

	stats := &Stats{
		TotalSubmissions:  count,
		RateLimitEntries:  s.rateLimiter.EntryCount(),
		RecentSubmissions: recent,
	}
	if counter, ok := s.otp.(interface{ ActiveCount() int }); ok {
		stats.ActiveOtpRecords = counter.ActiveCount()
	}
	if masker, ok := s.otp.(interface{ MaskedCodes() map[string]string }); ok {
		stats.MaskedCodes = masker.MaskedCodes()
	}
	return stats, nil
}

// sendOTPEmail dispatches the verification code to the single contact
// address. Total delivery failure surfaces as ErrDeliveryFailed; the
// pending submission and issued code remain valid so a resend can
// recover.
func (s *ContactService) sendOTPEmail(ctx context.Context, contact models.ContactData, code string) error {
	msg := mailer.OTPMessage(contact, code, s.otpTTL)
	job := models.NewEmailJob([]string{contact.Identity()}, msg.Subject, msg.HTMLBody, msg.TextBody)

	res := s.dispatcher.Dispatch(ctx, job)
	if res.AllFailed() {
		status := res.Recipients[contact.Identity()]
		return fmt.Errorf("%w: %s", models.ErrDeliveryFailed, status.Reason)
	}
	return nil
}
