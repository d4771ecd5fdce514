package errors

import (
	"fmt"
	"testing"
)

func TestDocCovError_Error(t *testing.T) {
	err := &DocCovError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "spec not found",
	}

	expected := "NOT_FOUND: spec not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("package is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "package is required" {
		t.Errorf("Message = %q, want %q", err.Message, "package is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("acme/widgets@main")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "acme/widgets@main" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "acme/widgets@main")
	}
}

func TestNewMalformedSpec(t *testing.T) {
	problems := []string{"meta.name is required", "exports[0]: id is required"}
	err := NewMalformedSpec(problems)

	if err.Code != ErrMalformedSpec {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedSpec)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	got, ok := err.Details["problems"].([]string)
	if !ok || len(got) != 2 {
		t.Errorf("Details[problems] = %v, want %v", err.Details["problems"], problems)
	}
}

func TestNewRetrievalTimeout(t *testing.T) {
	err := NewRetrievalTimeout(60)

	if err.Code != ErrRetrievalTimeout {
		t.Errorf("Code = %q, want %q", err.Code, ErrRetrievalTimeout)
	}
	if err.Status != 504 {
		t.Errorf("Status = %d, want 504", err.Status)
	}
	if !err.Retryable() {
		t.Error("Retryable() = false, want true")
	}
	if NewNotFound("x").Retryable() {
		t.Error("NotFound should not be retryable")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("retrieve base: %w", NewRetrievalTimeout(60)), ErrRetrievalTimeout, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
