package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"mathtikz/internal/config"
	"mathtikz/internal/deps"
	"mathtikz/internal/generation"
	"mathtikz/internal/logging"
	"mathtikz/internal/preflight"
	"mathtikz/internal/services/llm"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Generator produces LaTeX from a prompt.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Result, error)
}

// Renderer compiles LaTeX into PNG bytes.
type Renderer interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// Prober checks upstream reachability for diagnostics.
type Prober interface {
	Probe(ctx context.Context) (llm.ProbeResult, error)
}

// Option customizes the server.
type Option func(*Server)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProber enables the diagnostic endpoint.
func WithProber(prober Prober) Option {
	return func(s *Server) {
		s.prober = prober
	}
}

// WithDependencyCheck replaces the toolchain lookup used by /healthz.
func WithDependencyCheck(check func() []deps.Status) Option {
	return func(s *Server) {
		if check != nil {
			s.checkDeps = check
		}
	}
}

// Server serves the HTTP surface.
type Server struct {
	cfg       *config.Config
	generator Generator
	renderer  Renderer
	prober    Prober
	checkDeps func() []deps.Status
	logger    *slog.Logger
	assets    fs.FS

	handler http.Handler
	http    *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a server. generator and renderer are required.
func New(cfg *config.Config, generator Generator, renderer Renderer, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config required")
	}
	if generator == nil || renderer == nil {
		return nil, errors.New("server: generator and renderer required")
	}
	s := &Server{
		cfg:       cfg,
		generator: generator,
		renderer:  renderer,
		logger:    logging.NewNop(),
	}
	s.checkDeps = func() []deps.Status { return preflight.CheckSystemDeps(s.cfg) }
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "server")

	assets, err := frontendFS(cfg.Server.StaticDir)
	if err != nil {
		return nil, err
	}
	s.assets = assets

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))
	mux.HandleFunc("/diagnostic", s.handleDiagnostic)
	mux.HandleFunc("/test", s.handleDiagnostic)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/png", s.handlePNG)

	s.handler = chain(mux,
		s.requestID,
		s.accessLog,
		s.recoverPanics,
		s.cors,
		s.limitBody,
	)
	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:      seconds(cfg.Server.WriteTimeoutSeconds),
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped handler (tests, embedding).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run acquires the optional instance lock, listens on the configured address,
// and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	release, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	listener, err := net.Listen("tcp", s.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(listener)
	}()
	s.logger.Info("http server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	}
}

// Addr reports the bound address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acquireLock() (func(), error) {
	path := strings.TrimSpace(s.cfg.Server.LockFile)
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another mathtikz server holds %s", path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release server lock", logging.Error(err))
		}
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
