package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mathtikz/internal/api"
	"mathtikz/internal/catalog"
	"mathtikz/internal/config"
	"mathtikz/internal/deps"
	"mathtikz/internal/generation"
	"mathtikz/internal/server"
	"mathtikz/internal/services"
	"mathtikz/internal/services/llm"
)

type stubGenerator struct {
	result generation.Result
	err    error
	calls  int32
	last   generation.Request
}

func (s *stubGenerator) Generate(_ context.Context, req generation.Request) (generation.Result, error) {
	atomic.AddInt32(&s.calls, 1)
	s.last = req
	return s.result, s.err
}

type stubRenderer struct {
	image  []byte
	err    error
	source string
	panics bool
}

func (s *stubRenderer) Compile(_ context.Context, source string) ([]byte, error) {
	if s.panics {
		panic("renderer exploded")
	}
	s.source = source
	return s.image, s.err
}

type stubProber struct {
	result llm.ProbeResult
	err    error
}

func (s stubProber) Probe(context.Context) (llm.ProbeResult, error) {
	return s.result, s.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	return &cfg
}

func newTestServer(t *testing.T, cfg *config.Config, gen server.Generator, renderer server.Renderer, opts ...server.Option) http.Handler {
	t.Helper()
	opts = append(opts, server.WithDependencyCheck(func() []deps.Status {
		return []deps.Status{{Name: "LaTeX compiler", Command: "pdflatex", Available: true}}
	}))
	srv, err := server.New(cfg, gen, renderer, opts...)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got content type %q", ct)
	}
	var payload api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	if payload.Error == "" {
		t.Fatalf("expected error message, got %s", rec.Body.String())
	}
	return payload.Error
}

func TestGenerateSuccess(t *testing.T) {
	gen := &stubGenerator{result: generation.Result{Code: `\documentclass{standalone}`, Model: "m", Attempts: 1}}
	h := newTestServer(t, testConfig(), gen, &stubRenderer{})

	rec := do(t, h, http.MethodPost, "/generate", `{"prompt":"um círculo","model":"fast"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload api.GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != `\documentclass{standalone}` {
		t.Fatalf("unexpected code %q", payload.Code)
	}
	if gen.last.Prompt != "um círculo" || gen.last.ModelKey != "fast" {
		t.Fatalf("unexpected generation request %+v", gen.last)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestGenerateErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", services.Wrap(services.ErrValidation, "generation", "validate", "Prompt vazio.", nil), http.StatusBadRequest, "Prompt vazio."},
		{"rate limited", services.Wrap(services.ErrRateLimited, "llm", "retry", "Erro 429: limite", nil), http.StatusTooManyRequests, "Erro 429: limite"},
		{"network", services.Wrap(services.ErrNetwork, "llm", "request", "Erro ao contactar o modelo: boom", nil), http.StatusBadGateway, "Erro ao contactar o modelo: boom"},
		{"upstream", services.Wrap(services.ErrUpstream, "llm", "request", "Erro ao contactar o modelo: HTTP 401", nil), http.StatusBadGateway, "Erro ao contactar o modelo: HTTP 401"},
		{"configuration", services.Wrap(services.ErrConfiguration, "llm", "request", "OPENROUTER_API_KEY não configurada no servidor.", nil), http.StatusInternalServerError, "OPENROUTER_API_KEY não configurada no servidor."},
		{"malformed", services.Wrap(services.ErrMalformedResponse, "llm", "extract", "Resposta inválida: <html>", nil), http.StatusInternalServerError, "Resposta inválida: <html>"},
		{"empty", services.Wrap(services.ErrEmptyGeneration, "llm", "extract", "O modelo não devolveu código LaTeX válido.", nil), http.StatusInternalServerError, "O modelo não devolveu código LaTeX válido."},
		{"untagged", errors.New("boom"), http.StatusInternalServerError, "Erro interno do servidor."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, testConfig(), &stubGenerator{err: tc.err}, &stubRenderer{})
			rec := do(t, h, http.MethodPost, "/generate", `{"prompt":"p"}`)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tc.msg {
				t.Fatalf("expected %q, got %q", tc.msg, msg)
			}
		})
	}
}

func TestGenerateRejectsMalformedJSON(t *testing.T) {
	gen := &stubGenerator{}
	h := newTestServer(t, testConfig(), gen, &stubRenderer{})

	rec := do(t, h, http.MethodPost, "/generate", `{"prompt":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	decodeError(t, rec)
	if atomic.LoadInt32(&gen.calls) != 0 {
		t.Fatal("generator must not run for malformed input")
	}
}

func TestGenerateRejectsOversizedBody(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 64
	h := newTestServer(t, cfg, &stubGenerator{}, &stubRenderer{})

	rec := do(t, h, http.MethodPost, "/generate", `{"prompt":"`+strings.Repeat("x", 200)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	decodeError(t, rec)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/generate"},
		{http.MethodGet, "/png"},
		{http.MethodPost, "/diagnostic"},
		{http.MethodPost, "/healthz"},
	} {
		rec := do(t, h, tc.method, tc.path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
		decodeError(t, rec)
	}
}

func TestPNGSuccess(t *testing.T) {
	image := []byte("\x89PNG\r\n\x1a\nrest")
	renderer := &stubRenderer{image: image}
	h := newTestServer(t, testConfig(), &stubGenerator{}, renderer)

	rec := do(t, h, http.MethodPost, "/png", `{"code":"  \\documentclass{standalone}  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="imagem-matematica.png"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !bytes.Equal(rec.Body.Bytes(), image) {
		t.Fatal("expected renderer bytes in body")
	}
	if renderer.source != `\documentclass{standalone}` {
		t.Fatalf("expected trimmed source, got %q", renderer.source)
	}
}

func TestPNGErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"empty", services.Wrap(services.ErrValidation, "latex", "validate", "Código LaTeX vazio.", nil), http.StatusBadRequest},
		{"missing compiler", services.Wrap(services.ErrCompilerNotFound, "latex", "compile", "pdflatex não está instalado no servidor.", nil), http.StatusInternalServerError},
		{"compile", services.Wrap(services.ErrCompilation, "latex", "compile", "Erro de compilação LaTeX: ! Undefined", nil), http.StatusInternalServerError},
		{"rasterize", services.Wrap(services.ErrRasterize, "latex", "rasterize", "Erro ao gerar PNG: boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{err: tc.err})
			rec := do(t, h, http.MethodPost, "/png", `{"code":"x"}`)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if msg := decodeError(t, rec); msg != services.PublicMessage(tc.err) {
				t.Fatalf("unexpected message %q", msg)
			}
		})
	}
}

func TestPanicBecomesJSON500(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{panics: true})
	rec := do(t, h, http.MethodPost, "/png", `{"code":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	decodeError(t, rec)
}

func TestDiagnostic(t *testing.T) {
	probe := llm.ProbeResult{Status: 200, OK: true, Body: `{"data":[]}`}
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{}, server.WithProber(stubProber{result: probe}))

	for _, path := range []string{"/diagnostic", "/test"} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var payload api.DiagnosticResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload != api.FromProbe(probe) {
			t.Fatalf("unexpected payload %+v", payload)
		}
	}

	missing := services.Wrap(services.ErrConfiguration, "llm", "probe", "Chave não configurada", nil)
	h = newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{}, server.WithProber(stubProber{err: missing}))
	rec := do(t, h, http.MethodGet, "/diagnostic", "")
	if rec.Code != http.StatusOK || decodeError(t, rec) != "Chave não configurada" {
		t.Fatalf("unexpected diagnostic reply %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	cfg := testConfig()
	h := newTestServer(t, cfg, &stubGenerator{}, &stubRenderer{})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health api.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != api.HealthOK || !health.LLMConfigured || health.DefaultModel != cfg.Models.Default {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestIndexAndStatic(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{})

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "MathTikZ") {
		t.Fatalf("unexpected index reply %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec := do(t, h, http.MethodGet, "/static/app.js", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected embedded asset, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	decodeError(t, rec)
}

func TestIndexFromStaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>custom</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Server.StaticDir = dir
	h := newTestServer(t, cfg, &stubGenerator{}, &stubRenderer{})
	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Body.String() != "<p>custom</p>" {
		t.Fatalf("expected custom page, got %q", rec.Body.String())
	}

	cfg.Server.StaticDir = filepath.Join(dir, "missing")
	if _, err := server.New(cfg, &stubGenerator{}, &stubRenderer{}); err == nil {
		t.Fatal("expected error for missing static dir")
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{})
	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://allowed.example"}
	h = newTestServer(t, cfg, &stubGenerator{}, &stubRenderer{})
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow origin for foreign origin")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}, &stubRenderer{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("expected inbound id echoed, got %q", rec.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "bad id\n")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected generated id, got %q", got)
	}
}

// End to end through the real generator against a throttling upstream.
func TestGenerateRateLimitedUpstream(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer upstream.Close()

	cat, err := catalog.New("m", nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	client := llm.NewClient(llm.ChatCompletions{}, llm.Config{APIKey: "key", BaseURL: upstream.URL})
	gen := generation.New(client, cat, generation.WithPolicy(llm.Policy{
		MaxAttempts: 3,
		InitialWait: 5 * time.Second,
		Backoff:     llm.Additive(5 * time.Second),
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}))
	h := newTestServer(t, testConfig(), gen, &stubRenderer{})

	rec := do(t, h, http.MethodPost, "/generate", `{"prompt":"p"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if msg := decodeError(t, rec); !strings.HasPrefix(msg, "Erro 429") {
		t.Fatalf("unexpected message %q", msg)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 upstream attempts, got %d", hits)
	}

	rec = do(t, h, http.MethodPost, "/generate", `{"prompt":"   "}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "Prompt vazio." {
		t.Fatalf("expected 400 Prompt vazio., got %d %s", rec.Code, rec.Body.String())
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatal("blank prompt must not reach upstream")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, err := server.New(testConfig(), &stubGenerator{}, &stubRenderer{})
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen unavailable: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunRefusesHeldLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mathtikz.lock")
	cfg := testConfig()
	cfg.Server.LockFile = lockPath
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	first, err := server.New(cfg, &stubGenerator{}, &stubRenderer{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for first.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if first.Addr() == nil {
		t.Fatal("first server did not start")
	}

	second, err := server.New(cfg, &stubGenerator{}, &stubRenderer{})
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Run(ctx); err == nil || !strings.Contains(err.Error(), "another mathtikz server") {
		t.Fatalf("expected lock error, got %v", err)
	}
	cancel()
	<-done
}
