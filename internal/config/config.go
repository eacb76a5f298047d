package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Email     EmailConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Dispatch  DispatchConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// DebugEndpoints exposes raw-code/count introspection. It is a
	// construction-time capability and is forced off in production.
	DebugEndpoints bool
}

type DatabaseConfig struct {
	Path string // sqlite database file; ":memory:" for ephemeral
}

type EmailConfig struct {
	Provider      string // "ses" or "resend"
	AWSRegion     string
	ResendAPIKey  string
	FromAddress   string
	FromName      string
	AdminAddresses []string
}

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	CodeLength  int
}

type RateLimitConfig struct {
	OTPRequestLimit  int
	OTPRequestWindow time.Duration
	SubmitLimit      int
	SubmitWindow     time.Duration
	// HTTPRequestsPerMinute caps requests per client IP at the router
	HTTPRequestsPerMinute int
}

type DispatchConfig struct {
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	Workers        int
	Timeout        time.Duration
	SendsPerSecond float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	fromAddress := getEnv("EMAIL_FROM_ADDRESS", "")
	if fromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required")
	}

	adminAddresses := parseAddressList(getEnv("ADMIN_EMAILS", ""))
	if len(adminAddresses) == 0 {
		return nil, fmt.Errorf("ADMIN_EMAILS is required (comma-separated list)")
	}

	provider := strings.ToLower(getEnv("EMAIL_PROVIDER", "ses"))
	if provider != "ses" && provider != "resend" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be \"ses\" or \"resend\" (got %q)", provider)
	}
	if provider == "resend" && getEnv("RESEND_API_KEY", "") == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			DebugEndpoints: env != "production" && getEnvAsBool("DEBUG_ENDPOINTS", false),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "contact.db"),
		},
		Email: EmailConfig{
			Provider:       provider,
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
			FromAddress:    fromAddress,
			FromName:       getEnv("EMAIL_FROM_NAME", "Contact Form"),
			AdminAddresses: adminAddresses,
		},
		OTP: OTPConfig{
			TTL:         getEnvAsDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			CodeLength:  getEnvAsInt("OTP_CODE_LENGTH", 6),
		},
		RateLimit: RateLimitConfig{
			OTPRequestLimit:       getEnvAsInt("RATE_LIMIT_OTP_REQUESTS", 3),
			OTPRequestWindow:      getEnvAsDuration("RATE_LIMIT_OTP_WINDOW", 10*time.Minute),
			SubmitLimit:           getEnvAsInt("RATE_LIMIT_SUBMISSIONS", 5),
			SubmitWindow:          getEnvAsDuration("RATE_LIMIT_SUBMISSION_WINDOW", 1*time.Hour),
			HTTPRequestsPerMinute: getEnvAsInt("RATE_LIMIT_HTTP_PER_MINUTE", 30),
		},
		Dispatch: DispatchConfig{
			MaxRetries:     getEnvAsInt("DISPATCH_MAX_RETRIES", 3),
			BackoffBase:    getEnvAsDuration("DISPATCH_BACKOFF_BASE", 1*time.Second),
			BackoffCap:     getEnvAsDuration("DISPATCH_BACKOFF_CAP", 30*time.Second),
			Workers:        getEnvAsInt("DISPATCH_WORKERS", 4),
			Timeout:        getEnvAsDuration("DISPATCH_TIMEOUT", 2*time.Minute),
			SendsPerSecond: getEnvAsFloat("DISPATCH_SENDS_PER_SECOND", 10),
		},
	}

	if cfg.OTP.CodeLength < 4 || cfg.OTP.CodeLength > 10 {
		return nil, fmt.Errorf("OTP_CODE_LENGTH must be between 4 and 10 (got %d)", cfg.OTP.CodeLength)
	}
	if cfg.Dispatch.Workers < 1 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}

	return cfg, nil
}

func parseAddressList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	addresses := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addresses = append(addresses, p)
		}
	}
	return addresses
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5500",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5500",
		"http://127.0.0.1:8080",
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
