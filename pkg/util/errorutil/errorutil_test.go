package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"domain error passes through", NewForbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewValidationError("bad", nil)), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"no rows", pgx.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict, "CONFLICT"},
		{"fiber error", fiber.NewError(http.StatusUnauthorized, "who"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.HTTPStatus != tt.wantStatus || got.Code != tt.wantCode {
				t.Fatalf("got %d/%s, want %d/%s", got.HTTPStatus, got.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestToDomainErrorNil(t *testing.T) {
	if ToDomainError(nil) != nil {
		t.Fatal("nil error produced a DomainError")
	}
	if MapError(nil) != nil {
		t.Fatal("MapError(nil) returned non-nil")
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := errors.New("db exploded")
	de := ToDomainError(NewInternalError(cause))
	if de.Message != "internal server error" {
		t.Fatalf("message leaked cause: %q", de.Message)
	}
	if !errors.Is(de, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
}
