package logger

import (
	"strings"
)

// MaskEmail masks an email address for logging (e.g., "u***@e***.com").
// Submitter addresses are PII and never appear verbatim in logs.
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	local := parts[0]
	if len(local) > 1 {
		local = string(local[0]) + strings.Repeat("*", len(local)-1)
	}

	domainParts := strings.Split(parts[1], ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
	}

	return local + "@" + strings.Join(domainParts, ".")
}

// SanitizeQueryString reports whether a query string contains sensitive
// parameters and should be redacted from request logs wholesale.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"otp",
		"code",
		"email",
		"phone",
		"token",
		"secret",
		"api_key",
		"apikey",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
