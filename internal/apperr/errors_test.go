package apperr

import (
	"errors"
	"io"
	"net/http"
	"testing"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	err := Wrap(ErrNotFound, "bookmark get", "bookmark not found", io.EOF)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound marker, got %v", err)
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected cause to unwrap, got %v", err)
	}
	want := "not found: bookmark get: bookmark not found: EOF"
	if err.Error() != want {
		t.Fatalf("unexpected message %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutMarker(t *testing.T) {
	err := Wrap(nil, "op", "", nil)
	if err.Error() != "op" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if IsClientError(err) {
		t.Fatal("unmarked errors must not be treated as client errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validation("create", "url required"), http.StatusBadRequest},
		{NotFound("get", "folder"), http.StatusNotFound},
		{Wrap(ErrConflict, "publish", "", nil), http.StatusConflict},
		{Wrap(ErrForbidden, "delete", "", nil), http.StatusForbidden},
		{Wrap(ErrUnavailable, "ping", "", nil), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
