package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/uncip/guardhub/internal/app/system/apperr"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code apperr.Code
		want int
	}{
		{apperr.Unauthenticated, http.StatusUnauthorized},
		{apperr.Forbidden, http.StatusForbidden},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.Conflict, http.StatusConflict},
		{apperr.Invalid, http.StatusBadRequest},
		{apperr.Unavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		got := apperr.HTTPStatus(apperr.E(tt.code, "x"))
		if got != tt.want {
			t.Errorf("HTTPStatus(%s): got %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHTTPStatus_UnclassifiedError(t *testing.T) {
	if got := apperr.HTTPStatus(errors.New("boom")); got != http.StatusServiceUnavailable {
		t.Errorf("unclassified error: got %d, want %d", got, http.StatusServiceUnavailable)
	}
}

func TestCodeOf_Wrapped(t *testing.T) {
	inner := apperr.E(apperr.NotFound, "child not found")
	outer := fmt.Errorf("get child: %w", inner)

	if got := apperr.CodeOf(outer); got != apperr.NotFound {
		t.Errorf("CodeOf through wrapping: got %s, want %s", got, apperr.NotFound)
	}
	if !apperr.IsCode(outer, apperr.NotFound) {
		t.Error("IsCode should match through wrapping")
	}
}

func TestWrap_CarriesCause(t *testing.T) {
	cause := errors.New("bcrypt: cost out of range")
	err := apperr.Wrap(apperr.Unavailable, "could not update password", cause)

	if got := apperr.CodeOf(err); got != apperr.Unavailable {
		t.Errorf("CodeOf: got %s, want %s", got, apperr.Unavailable)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should match through errors.Is")
	}
	if got := apperr.Public(err); got != "could not update password" {
		t.Errorf("Public: got %q, cause must not leak", got)
	}
}

func TestIs_SentinelComparison(t *testing.T) {
	sentinel := apperr.E(apperr.Conflict, "a user with this email already exists")
	wrapped := fmt.Errorf("create user: %w", sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should match the sentinel through wrapping")
	}
	other := apperr.E(apperr.Conflict, "an active alert of this type already exists for this child")
	if errors.Is(other, sentinel) {
		t.Error("different messages with the same code must not match")
	}
}

func TestPublic_NeverLeaksInternalDetail(t *testing.T) {
	err := errors.New("mongo: connection refused 10.0.0.3:27017")
	if got := apperr.Public(err); got != "service temporarily unavailable" {
		t.Errorf("Public leaked internal detail: %q", got)
	}

	typed := apperr.Field("child_id", "child_id is required")
	if got := apperr.Public(typed); got != "child_id is required" {
		t.Errorf("Public: got %q", got)
	}
}
