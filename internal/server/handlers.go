package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"mathtikz/internal/api"
	"mathtikz/internal/generation"
	"mathtikz/internal/logging"
	"mathtikz/internal/services"
)

const downloadName = "imagem-matematica.png"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page, err := fs.ReadFile(s.assets, "index.html")
	if err != nil {
		s.logger.Error("front-end unavailable", logging.Error(err))
		s.writeError(w, http.StatusNotFound, "index.html not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(page)
	}
}

func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.prober == nil {
		s.writeJSON(w, http.StatusOK, api.ErrorResponse{Error: "Chave não configurada"})
		return
	}
	ctx := services.WithOperation(r.Context(), "diagnostic")
	result, err := s.prober.Probe(ctx)
	if err != nil {
		logging.WithContext(ctx, s.logger).Info("diagnostic probe failed", logging.Error(err))
		s.writeJSON(w, http.StatusOK, api.ErrorResponse{Error: services.PublicMessage(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProbe(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health := api.NewHealthResponse(
		s.cfg.LLM.Provider,
		s.cfg.Models.Default,
		s.cfg.HasAPIKey(),
		s.checkDeps(),
	)
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := services.WithOperation(r.Context(), "generate")
	r = r.WithContext(ctx)

	var req api.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.generator.Generate(ctx, generation.Request{Prompt: req.Prompt, ModelKey: req.Model})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	logging.WithContext(services.WithModel(ctx, result.Model), s.logger).Info("latex generated",
		logging.Int("attempts", result.Attempts),
		logging.Bool("model_fallback", result.Fallback),
	)
	s.writeJSON(w, http.StatusOK, api.GenerateResponse{Code: result.Code})
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := services.WithOperation(r.Context(), "render")
	r = r.WithContext(ctx)

	var req api.RenderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	image, err := s.renderer.Compile(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image); err != nil {
		logging.WithContext(ctx, s.logger).Debug("png write interrupted", logging.Error(err))
	}
}

// decodeJSON reads a JSON object body. An empty body decodes as the zero
// value so field validation produces the caller-facing message.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return services.Wrap(services.ErrValidation, "server", "decode", "JSON inválido: "+err.Error(), err)
	}
}

// writeServiceError maps err to its status and public message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Pedido demasiado grande.")
		return
	}
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "request_error",
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		logger.Info("request rejected", logging.Int("status", status), logging.Error(err))
	}
	s.writeError(w, status, services.PublicMessage(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
