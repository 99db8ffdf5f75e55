package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"mathtikz/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCompilation, "latex", "compile", "no pdf", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrCompilation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"compilation error", "latex", "compile", "no pdf", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToUpstream(t *testing.T) {
	err := services.Wrap(nil, "llm", "request", "", nil)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream marker, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrConfiguration, http.StatusInternalServerError},
		{services.ErrRateLimited, http.StatusTooManyRequests},
		{services.ErrNetwork, http.StatusBadGateway},
		{services.ErrUpstream, http.StatusBadGateway},
		{services.ErrMalformedResponse, http.StatusInternalServerError},
		{services.ErrEmptyGeneration, http.StatusInternalServerError},
		{services.ErrCompilerNotFound, http.StatusInternalServerError},
		{services.ErrCompilation, http.StatusInternalServerError},
		{services.ErrRasterize, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "test", "op", "", nil)
		if got := services.HTTPStatus(err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.marker, tc.want, got)
		}
	}
	if got := services.HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for untagged error, got %d", got)
	}
	if got := services.HTTPStatus(nil); got != http.StatusOK {
		t.Fatalf("expected 200 for nil error, got %d", got)
	}
}

func TestPublicMessageSurvivesOuterWrapping(t *testing.T) {
	inner := services.Wrap(services.ErrValidation, "generation", "validate", "Prompt vazio.", nil)
	outer := fmt.Errorf("handler: %w", inner)
	if msg := services.PublicMessage(outer); msg != "Prompt vazio." {
		t.Fatalf("unexpected message %q", msg)
	}
	if services.HTTPStatus(outer) != http.StatusBadRequest {
		t.Fatal("expected outer wrapping to keep status")
	}
}

func TestPublicMessageFallsBackPerMarker(t *testing.T) {
	err := services.Wrap(services.ErrRateLimited, "llm", "retry", "", nil)
	if msg := services.PublicMessage(err); !strings.Contains(msg, "Limite") {
		t.Fatalf("unexpected fallback message %q", msg)
	}
	if msg := services.PublicMessage(errors.New("x")); msg == "" {
		t.Fatal("expected generic message for untagged error")
	}
}
