package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/stockify/contact-api/internal/handlers"
	"github.com/stockify/contact-api/internal/middleware"
)

// RegisterRoutes registers all application routes. Debug routes are
// mounted only when debugEnabled is set, which config forces off in
// production.
func RegisterRoutes(
	router chi.Router,
	contactHandler *handlers.ContactHandler,
	debugHandler *handlers.DebugHandler,
	rateLimitConfig middleware.RateLimitConfig,
	debugEnabled bool,
) {
	router.Route("/api/contact", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Post("/request-otp", contactHandler.RequestOTP)
		r.Post("/verify-submit", contactHandler.VerifyAndSubmit)
		r.Post("/resend-otp", contactHandler.ResendOTP)
	})

	if debugEnabled {
		router.Get("/api/debug/stats", debugHandler.Stats)
	}
}
