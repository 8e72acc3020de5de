package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("question is required"), http.StatusBadRequest},
		{"not found", NotFound("help request", "abc"), http.StatusNotFound},
		{"invalid state", InvalidState("request is resolved"), http.StatusConflict},
		{"duplicate session", fmt.Errorf("creating: %w", ErrDuplicateSession), http.StatusConflict},
		{"dependency", Dependency("webhook", errors.New("connection refused")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDependencyKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Dependency("slack", cause)
	if !errors.Is(err, ErrDependency) {
		t.Error("expected ErrDependency")
	}
	if !errors.Is(err, cause) {
		t.Error("expected original cause to be preserved")
	}
}
