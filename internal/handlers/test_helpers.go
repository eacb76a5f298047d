package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockify/contact-api/internal/models"
	"github.com/stockify/contact-api/internal/services"
	pkghttp "github.com/stockify/contact-api/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertSuccessResponse checks status and decodes the data payload of a
// success envelope into target
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var envelope pkghttp.APIResponse
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	assert.NoError(t, err, "Failed to decode response JSON")
	assert.True(t, envelope.Success)
	assert.NotEmpty(t, envelope.Message)
	assert.NotEmpty(t, envelope.Timestamp)

	if target != nil {
		raw, err := json.Marshal(envelope.Data)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, target))
	}
}

// AssertErrorResponse checks that the response is a failure envelope
// with the expected status
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) string {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var envelope pkghttp.APIResponse
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, envelope.Success)
	assert.NotEmpty(t, envelope.Message, "Error message should not be empty")
	return envelope.Message
}

// MockContactService implements ContactServiceInterface for testing
type MockContactService struct {
	RequestOTPFunc      func(ctx context.Context, contact models.ContactData) (*services.RequestOTPResult, error)
	ResendOTPFunc       func(ctx context.Context, email string) (*services.RequestOTPResult, error)
	VerifyAndSubmitFunc func(ctx context.Context, code string, contact models.ContactData) (*services.VerifyResult, error)
}

func (m *MockContactService) RequestOTP(ctx context.Context, contact models.ContactData) (*services.RequestOTPResult, error) {
	if m.RequestOTPFunc == nil {
		return &services.RequestOTPResult{SubmissionID: "sub-1", ExpiresIn: 600}, nil
	}
	return m.RequestOTPFunc(ctx, contact)
}

func (m *MockContactService) ResendOTP(ctx context.Context, email string) (*services.RequestOTPResult, error) {
	if m.ResendOTPFunc == nil {
		return &services.RequestOTPResult{SubmissionID: "sub-1", ExpiresIn: 600}, nil
	}
	return m.ResendOTPFunc(ctx, email)
}

func (m *MockContactService) VerifyAndSubmit(ctx context.Context, code string, contact models.ContactData) (*services.VerifyResult, error) {
	if m.VerifyAndSubmitFunc == nil {
		return &services.VerifyResult{SubmissionID: "sub-1"}, nil
	}
	return m.VerifyAndSubmitFunc(ctx, code, contact)
}

// MockDebugService implements DebugServiceInterface for testing
type MockDebugService struct {
	StatsFunc func(ctx context.Context) (*services.Stats, error)
}

func (m *MockDebugService) Stats(ctx context.Context) (*services.Stats, error) {
	if m.StatsFunc == nil {
		return &services.Stats{}, nil
	}
	return m.StatsFunc(ctx)
}
