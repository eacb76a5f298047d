package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockify/contact-api/internal/middleware"
)

func corsHandler(origins ...string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return middleware.CORS(middleware.NewCORSConfig(origins))(next)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := corsHandler("https://www.example.com")

	req := httptest.NewRequest("POST", "/api/contact/request-otp", nil)
	req.Header.Set("Origin", "https://www.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://www.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSFailsClosedForUnknownOrigin(t *testing.T) {
	handler := corsHandler("https://www.example.com")

	req := httptest.NewRequest("POST", "/api/contact/request-otp", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHandlesPreflight(t *testing.T) {
	handler := corsHandler("https://www.example.com")

	req := httptest.NewRequest("OPTIONS", "/api/contact/request-otp", nil)
	req.Header.Set("Origin", "https://www.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
