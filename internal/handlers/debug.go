package handlers

import (
	"context"
	"net/http"

	"github.com/stockify/contact-api/internal/services"
	pkghttp "github.com/stockify/contact-api/pkg/http"
)

// DebugServiceInterface defines the interface for debug introspection
type DebugServiceInterface interface {
	Stats(ctx context.Context) (*services.Stats, error)
}

// DebugHandler exposes development-only introspection. Its routes are
// mounted only when debug endpoints are enabled, which never happens in
// production.
type DebugHandler struct {
	service DebugServiceInterface
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(service DebugServiceInterface) *DebugHandler {
	return &DebugHandler{service: service}
}

// Stats returns counts, masked codes and recent submissions
func (h *DebugHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Debug statistics", stats)
}
