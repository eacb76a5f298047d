package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/stockify/contact-api/internal/models"
	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// OtpConfig holds code issuance parameters.
type OtpConfig struct {
	TTL         time.Duration
	MaxAttempts int
	CodeLength  int
}

// DefaultOtpConfig returns the documented defaults: 10 minute validity,
// 5 attempts, 6 digit codes.
func DefaultOtpConfig() OtpConfig {
	return OtpConfig{
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		CodeLength:  6,
	}
}

// OtpService manages the single active verification code per identity.
// Records live in memory only; a restart invalidates all outstanding
// codes, which is acceptable for their 10 minute lifetime.
type OtpService struct {
	mu      sync.Mutex
	records map[string]*models.OtpRecord

	rateLimiter *RateLimitService
	config      OtpConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewOtpService creates a new OtpService.
func NewOtpService(rateLimiter *RateLimitService, config OtpConfig, logger *slog.Logger) *OtpService {
	return &OtpService{
		records:     make(map[string]*models.OtpRecord),
		rateLimiter: rateLimiter,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// Issue generates a fresh code for the identity, overwriting any
// previous record. Returns a RateLimitedError when the identity has
// exhausted its issuance window.
func (s *OtpService) Issue(identity string) (*models.OtpRecord, error) {
	if !s.rateLimiter.Allow(identity, OpRequestOTP) {
		return nil, &models.RateLimitedError{
			RetryAfter: s.rateLimiter.RetryAfter(identity, OpRequestOTP),
		}
	}
	return s.issue(identity)
}

// Resend reissues a fresh code for an identity that already has an
// active record. The reissue counts against the same rate limit as
// Issue and invalidates the previous code.
func (s *OtpService) Resend(identity string) (*models.OtpRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[identity]
	if !ok || !rec.IsActive() {
		delete(s.records, identity)
		s.mu.Unlock()
		return nil, models.ErrOtpNotFound
	}
	s.mu.Unlock()

	return s.Issue(identity)
}

func (s *OtpService) issue(identity string) (*models.OtpRecord, error) {
	code, err := generateCode(s.config.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generating verification code: %w", err)
	}

	now := s.now()
	rec := &models.OtpRecord{
		Identity:    identity,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.config.TTL),
		MaxAttempts: s.config.MaxAttempts,
	}

	s.mu.Lock()
	s.records[identity] = rec
	s.mu.Unlock()

	s.logger.Info("verification code issued",
		slog.String("identity", pkglogger.MaskEmail(identity)),
		slog.Time("expires_at", rec.ExpiresAt))

	issued := *rec
	return &issued, nil
}

// Verify checks the supplied code against the identity's active record.
// On success the record is consumed and removed; the same code can
// never verify twice. Expired and attempt-exhausted records are removed
// on discovery so the caller sees NotFound afterwards.
func (s *OtpService) Verify(identity, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		return models.ErrOtpNotFound
	}

	if rec.IsExpired() {
		delete(s.records, identity)
		return models.ErrOtpExpired
	}

	if rec.AttemptsUsed >= rec.MaxAttempts {
		delete(s.records, identity)
		return models.ErrOtpAttemptsExhausted
	}

	rec.AttemptsUsed++

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		if rec.AttemptsUsed >= rec.MaxAttempts {
			delete(s.records, identity)
			s.logger.Warn("verification attempts exhausted",
				slog.String("identity", pkglogger.MaskEmail(identity)))
			return models.ErrOtpAttemptsExhausted
		}
		return models.ErrOtpInvalid
	}

	rec.Consumed = true
	delete(s.records, identity)

	s.logger.Info("verification code accepted",
		slog.String("identity", pkglogger.MaskEmail(identity)),
		slog.Int("attempts_used", rec.AttemptsUsed))
	return nil
}

// ActiveCount returns the number of stored records, for debug
// introspection.
func (s *OtpService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// MaskedCodes returns the active records keyed by identity with their
// codes masked. Debug introspection only; never reveals full codes.
func (s *OtpService) MaskedCodes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	masked := make(map[string]string, len(s.records))
	for identity, rec := range s.records {
		masked[identity] = rec.MaskedCode()
	}
	return masked
}

// PruneExpired removes records past their expiry. Called periodically
// by the background cleanup task.
func (s *OtpService) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for identity, rec := range s.records {
		if rec.IsExpired() {
			delete(s.records, identity)
			pruned++
		}
	}
	return pruned
}

// generateCode produces a cryptographically random numeric code of the
// given length, preserving leading zeros.
func generateCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
