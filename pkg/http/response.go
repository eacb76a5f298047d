package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// APIResponse is the standard JSON envelope for every endpoint.
type APIResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func write(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	write(w, statusCode, APIResponse{Success: true, Message: message, Data: data})
}

// WriteError writes a failure envelope with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	write(w, statusCode, APIResponse{Success: false, Message: message})
}

// Common error writers for consistency

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteTooManyRequests writes a 429 with a Retry-After hint in seconds.
func WriteTooManyRequests(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	}
	WriteError(w, http.StatusTooManyRequests, message)
}

func WriteBadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
