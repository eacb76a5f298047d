package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockify/contact-api/internal/models"
)

func newTestOtpService() *OtpService {
	limiter := NewRateLimitService(DefaultRateLimitConfig(), testLogger())
	return NewOtpService(limiter, DefaultOtpConfig(), testLogger())
}

func TestOtpIssueAndVerify(t *testing.T) {
	svc := newTestOtpService()

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), rec.Code)
	assert.Equal(t, 1, svc.ActiveCount())

	err = svc.Verify("user@example.com", rec.Code)
	assert.NoError(t, err)
	assert.Equal(t, 0, svc.ActiveCount(), "consumed record should be removed")
}

func TestOtpVerifyIsSingleUse(t *testing.T) {
	svc := newTestOtpService()

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Verify("user@example.com", rec.Code))

	err = svc.Verify("user@example.com", rec.Code)
	assert.ErrorIs(t, err, models.ErrOtpNotFound, "a consumed code must never verify twice")
}

func TestOtpVerifyWrongCode(t *testing.T) {
	svc := newTestOtpService()

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if rec.Code == wrong {
		wrong = "000001"
	}

	err = svc.Verify("user@example.com", wrong)
	assert.ErrorIs(t, err, models.ErrOtpInvalid)

	// The correct code still works after a failed attempt
	assert.NoError(t, svc.Verify("user@example.com", rec.Code))
}

func TestOtpAttemptsExhausted(t *testing.T) {
	svc := newTestOtpService()

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if rec.Code == wrong {
		wrong = "000001"
	}

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, svc.Verify("user@example.com", wrong), models.ErrOtpInvalid)
	}

	// Fifth failure exhausts the record
	assert.ErrorIs(t, svc.Verify("user@example.com", wrong), models.ErrOtpAttemptsExhausted)

	// The record is gone; even the correct code is refused now
	assert.ErrorIs(t, svc.Verify("user@example.com", rec.Code), models.ErrOtpNotFound)
}

func TestOtpVerifyExpired(t *testing.T) {
	svc := newTestOtpService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	err = svc.Verify("user@example.com", rec.Code)
	assert.ErrorIs(t, err, models.ErrOtpExpired)
	assert.Equal(t, 0, svc.ActiveCount(), "expired record is removed on discovery")
}

func TestOtpVerifyUnknownIdentity(t *testing.T) {
	svc := newTestOtpService()
	assert.ErrorIs(t, svc.Verify("nobody@example.com", "123456"), models.ErrOtpNotFound)
}

func TestOtpReissueInvalidatesPreviousCode(t *testing.T) {
	svc := newTestOtpService()

	first, err := svc.Issue("user@example.com")
	require.NoError(t, err)
	second, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.ActiveCount(), "an identity has at most one active record")

	if first.Code != second.Code {
		assert.ErrorIs(t, svc.Verify("user@example.com", first.Code), models.ErrOtpInvalid)
	}
	assert.NoError(t, svc.Verify("user@example.com", second.Code))
}

func TestOtpIssueRateLimited(t *testing.T) {
	svc := newTestOtpService()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue("user@example.com")
		require.NoError(t, err)
	}

	_, err := svc.Issue("user@example.com")
	assert.ErrorIs(t, err, models.ErrRateLimited)

	var rateErr *models.RateLimitedError
	assert.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))
}

func TestOtpResendRequiresActiveRecord(t *testing.T) {
	svc := newTestOtpService()

	_, err := svc.Resend("user@example.com")
	assert.ErrorIs(t, err, models.ErrOtpNotFound)

	_, err = svc.Issue("user@example.com")
	require.NoError(t, err)

	rec, err := svc.Resend("user@example.com")
	require.NoError(t, err)
	assert.NoError(t, svc.Verify("user@example.com", rec.Code))
}

func TestOtpMaskedCodesNeverExposeFullCode(t *testing.T) {
	svc := newTestOtpService()

	rec, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	masked := svc.MaskedCodes()
	require.Contains(t, masked, "user@example.com")
	assert.Equal(t, "***"+rec.Code[3:], masked["user@example.com"])
}

func TestOtpPruneExpired(t *testing.T) {
	svc := newTestOtpService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := svc.Issue("old@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Issue("fresh@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.PruneExpired())
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestGenerateCodeKeepsLeadingZeros(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, regexp.MustCompile(`^\d+$`), code)
	}
}
