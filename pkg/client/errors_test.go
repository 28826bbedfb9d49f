package client

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		errorClass ErrorClass
		expected   bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorClass), func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection reset"),
			},
			expected: "fireblocks server error (status 500): internal server error: connection reset",
		},
		{
			name: "with api code",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "vault account not found",
				Code:       11001,
			},
			expected: "fireblocks client error (status 404): vault account not found (code 11001)",
		},
		{
			name: "rate limit",
			apiError: &APIError{
				StatusCode: 429,
				ErrorClass: ErrorClassRateLimit,
				Message:    "429 Too Many Requests",
			},
			expected: "fireblocks rate_limit error (status 429): 429 Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrapped := errors.New("wrapped error")
	apiErr := &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Err: wrapped}

	if !errors.Is(apiErr, wrapped) {
		t.Error("errors.Is should see the wrapped error")
	}
	if (&APIError{}).Unwrap() != nil {
		t.Error("Unwrap() on an error without cause should be nil")
	}
}

func TestNewAPIError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Status:     "429 Too Many Requests",
		Header:     http.Header{"Retry-After": {"3"}},
		Body:       io.NopCloser(strings.NewReader(`{"message":"slow down","code":1429}`)),
	}

	apiErr := newAPIError(resp, ErrorClassRateLimit)
	if apiErr.Message != "slow down" || apiErr.Code != 1429 {
		t.Errorf("message/code = %q/%d", apiErr.Message, apiErr.Code)
	}
	if apiErr.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", apiErr.RetryAfter)
	}

	resp = &http.Response{
		StatusCode: http.StatusBadGateway,
		Status:     "502 Bad Gateway",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("<html>upstream</html>")),
	}
	apiErr = newAPIError(resp, ErrorClassServer)
	if apiErr.Message != "502 Bad Gateway" {
		t.Errorf("Message = %q, want the status line for a non-JSON body", apiErr.Message)
	}
}

func TestClassify(t *testing.T) {
	if got := classify(&APIError{ErrorClass: ErrorClassServer}); got != ErrorClassServer {
		t.Errorf("classify(APIError) = %q", got)
	}
	if got := classify(errors.New("dial tcp: refused")); got != ErrorClassNetwork {
		t.Errorf("classify(plain error) = %q", got)
	}
}
