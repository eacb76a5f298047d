package services

import (
	"log/slog"
	"sync"
	"time"

	pkglogger "github.com/stockify/contact-api/pkg/logger"
)

// OperationClass distinguishes the throttled operation kinds.
type OperationClass string

const (
	OpRequestOTP OperationClass = "otp_request"
	OpSubmit     OperationClass = "submission_request"
)

// RateLimitPolicy is the per-class limit: at most Limit admitted calls
// within any single Window.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds the policy per operation class.
type RateLimitConfig struct {
	OTPRequest RateLimitPolicy
	Submit     RateLimitPolicy
}

// DefaultRateLimitConfig returns the documented defaults: 3 OTP
// requests per 10 minutes and 5 submissions per hour, per identity.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		OTPRequest: RateLimitPolicy{Limit: 3, Window: 10 * time.Minute},
		Submit:     RateLimitPolicy{Limit: 5, Window: 1 * time.Hour},
	}
}

type rateWindow struct {
	windowStart time.Time
	count       int
}

// RateLimitService is a fixed-window request counter keyed by
// (operation class, normalized identity). A disallowed call is a
// normal outcome, not an error.
type RateLimitService struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	config  RateLimitConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimitService creates a new RateLimitService.
func NewRateLimitService(config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		windows: make(map[string]*rateWindow),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *RateLimitService) policy(class OperationClass) RateLimitPolicy {
	if class == OpSubmit {
		return s.config.Submit
	}
	return s.config.OTPRequest
}

// Allow records a hit and returns true if the identity is under the
// class limit for the current window. The check-and-increment is atomic:
// two racing callers at the boundary never both get admitted.
func (s *RateLimitService) Allow(identity string, class OperationClass) bool {
	policy := s.policy(class)
	key := string(class) + ":" + identity
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.windowStart.Add(policy.Window)) {
		w = &rateWindow{windowStart: now}
		s.windows[key] = w
	}

	if w.count >= policy.Limit {
		s.logger.Warn("rate limit exceeded",
			slog.String("identity", pkglogger.MaskEmail(identity)),
			slog.String("class", string(class)),
			slog.Int("count", w.count))
		return false
	}

	w.count++
	return true
}

// RetryAfter returns how long until the identity's current window for
// the class resets. Zero when no window is active.
func (s *RateLimitService) RetryAfter(identity string, class OperationClass) time.Duration {
	policy := s.policy(class)
	key := string(class) + ":" + identity
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return 0
	}
	remaining := w.windowStart.Add(policy.Window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EntryCount returns the number of tracked windows, for debug
// introspection.
func (s *RateLimitService) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// PruneStale drops windows whose duration has fully elapsed. Called
// periodically by the background cleanup task.
func (s *RateLimitService) PruneStale() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for key, w := range s.windows {
		// The longest configured window bounds staleness for both classes
		maxWindow := s.config.OTPRequest.Window
		if s.config.Submit.Window > maxWindow {
			maxWindow = s.config.Submit.Window
		}
		if !now.Before(w.windowStart.Add(maxWindow)) {
			delete(s.windows, key)
			pruned++
		}
	}
	return pruned
}
