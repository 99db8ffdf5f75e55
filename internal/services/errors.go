package services

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrRateLimited       = errors.New("rate limited")
	ErrNetwork           = errors.New("network error")
	ErrUpstream          = errors.New("upstream error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrEmptyGeneration   = errors.New("empty generation")
	ErrCompilerNotFound  = errors.New("compiler not found")
	ErrCompilation       = errors.New("compilation error")
	ErrRasterize         = errors.New("rasterization error")
)

// Error tags a failure with one of the exported markers and carries the
// human-readable message shown to API callers.
type Error struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	marker := "service failure"
	if e.Marker != nil {
		marker = e.Marker.Error()
	}
	if e.Err != nil {
		return marker + ": " + detail + ": " + e.Err.Error()
	}
	return marker + ": " + detail
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later status classification. The marker should be
// one of the exported sentinel errors above; nil defaults to ErrUpstream.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrUpstream
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// HTTPStatus maps a failure to the status code returned by the HTTP surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing message attached by Wrap, falling
// back to a generic message per marker.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		return tagged.Message
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "Pedido inválido."
	case errors.Is(err, ErrConfiguration):
		return "Configuração do servidor incompleta."
	case errors.Is(err, ErrRateLimited):
		return "Limite de pedidos atingido. Tente novamente mais tarde."
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrUpstream):
		return "Erro ao contactar o modelo."
	case errors.Is(err, ErrCompilerNotFound):
		return "pdflatex não está instalado no servidor."
	case errors.Is(err, ErrCompilation):
		return "Erro de compilação LaTeX."
	default:
		return "Erro interno do servidor."
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component != "" {
		parts = append(parts, component)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
