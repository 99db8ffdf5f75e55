package latex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mathtikz/internal/config"
	"mathtikz/internal/logging"
	"mathtikz/internal/services"
)

const (
	sourceName    = "main.tex"
	pdfName       = "main.pdf"
	pageStem      = "page"
	defaultDPI    = 200
	defaultTail   = 500
	defaultLimit  = 30 * time.Second
	dirPattern    = "mathtikz-*"
	tailHeadroom  = 4
	maxTailLength = 64 * 1024
)

// Config captures how the external toolchain is invoked.
type Config struct {
	Compiler     string
	Rasterizer   string
	Timeout      time.Duration
	DPI          int
	LogTailChars int
	WorkDir      string
	MaxWidth     int
	ShellEscape  bool
}

// ConfigFromApp extracts pipeline settings from the [latex] section.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Compiler:     cfg.LaTeX.Compiler,
		Rasterizer:   cfg.LaTeX.Rasterizer,
		Timeout:      cfg.CompileTimeout(),
		DPI:          cfg.LaTeX.DPI,
		LogTailChars: cfg.LaTeX.LogTailChars,
		WorkDir:      cfg.LaTeX.WorkDir,
		MaxWidth:     cfg.LaTeX.MaxWidth,
		ShellEscape:  cfg.LaTeX.ShellEscape,
	}
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Pipeline) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline compiles LaTeX to PNG. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	cfg    Config
	exec   Executor
	logger *slog.Logger
}

// New constructs a pipeline, filling unset fields with the stock toolchain.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.Compiler = strings.TrimSpace(cfg.Compiler)
	if cfg.Compiler == "" {
		cfg.Compiler = "pdflatex"
	}
	cfg.Rasterizer = strings.TrimSpace(cfg.Rasterizer)
	if cfg.Rasterizer == "" {
		cfg.Rasterizer = "pdftoppm"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLimit
	}
	if cfg.DPI <= 0 {
		cfg.DPI = defaultDPI
	}
	if cfg.LogTailChars <= 0 {
		cfg.LogTailChars = defaultTail
	}
	p := &Pipeline{
		cfg:    cfg,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "latex")
	return p
}

// NewFromConfig builds a pipeline from application configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	return New(ConfigFromApp(cfg), append([]Option{WithLogger(logger)}, opts...)...)
}

// Compiler returns the configured compiler binary.
func (p *Pipeline) Compiler() string { return p.cfg.Compiler }

// Rasterizer returns the configured rasterizer binary.
func (p *Pipeline) Rasterizer() string { return p.cfg.Rasterizer }

// Compile renders source and returns the PNG bytes of its first page. The
// working directory never outlives the call.
func (p *Pipeline) Compile(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, services.Wrap(services.ErrValidation, "latex", "validate", "Código LaTeX vazio.", nil)
	}

	jobID := uuid.NewString()
	logger := logging.WithContext(ctx, p.logger).With(logging.String("job_id", jobID))
	started := time.Now()

	dir, err := os.MkdirTemp(p.cfg.WorkDir, dirPattern)
	if err != nil {
		return nil, services.Wrap(services.ErrRasterize, "latex", "workdir", "Erro ao gerar PNG: "+err.Error(), err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "failed to remove latex work directory", "latex_cleanup",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "temporary files left on disk"),
			)
		}
	}()

	texPath := filepath.Join(dir, sourceName)
	if err := os.WriteFile(texPath, []byte(source), 0o600); err != nil {
		return nil, services.Wrap(services.ErrRasterize, "latex", "write", "Erro ao gerar PNG: "+err.Error(), err)
	}

	pdfPath, err := p.compile(ctx, dir, texPath)
	if err != nil {
		logger.Info("latex compilation failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		return nil, err
	}
	image, err := p.rasterize(ctx, dir, pdfPath)
	if err != nil {
		logger.Info("latex rasterization failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		return nil, err
	}
	logger.Debug("latex render complete",
		logging.Int("png_bytes", len(image)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return image, nil
}

func (p *Pipeline) compile(ctx context.Context, dir, texPath string) (string, error) {
	escape := "-no-shell-escape"
	if p.cfg.ShellEscape {
		escape = "-shell-escape"
	}
	args := []string{
		"-interaction=nonstopmode",
		escape,
		"-output-directory", dir,
		texPath,
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	tail := newOutputTail(p.cfg.LogTailChars)
	runErr := p.exec.Run(runCtx, dir, p.cfg.Compiler, args, tail.add)
	if binaryMissing(runErr) {
		return "", notInstalled("compile", p.cfg.Compiler, runErr)
	}

	pdfPath := filepath.Join(dir, pdfName)
	if info, err := os.Stat(pdfPath); err == nil && info.Size() > 0 {
		return pdfPath, nil
	}

	log := tail.String()
	detail := log
	if detail == "" && runErr != nil {
		detail = runErr.Error()
	}
	message := "Erro de compilação LaTeX: " + detail
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		message = fmt.Sprintf("Erro de compilação LaTeX: tempo limite de %s excedido. %s", p.cfg.Timeout, log)
	}
	return "", services.Wrap(
		services.ErrCompilation,
		"latex",
		"compile",
		strings.TrimSpace(message),
		&CompileError{Tail: log, Err: runErr},
	)
}

func (p *Pipeline) rasterize(ctx context.Context, dir, pdfPath string) ([]byte, error) {
	outputStem := filepath.Join(dir, pageStem)
	args := []string{
		"-png",
		"-r", strconv.Itoa(p.cfg.DPI),
		"-f", "1",
		"-l", "1",
		"-singlefile",
		pdfPath,
		outputStem,
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	tail := newOutputTail(p.cfg.LogTailChars)
	if err := p.exec.Run(runCtx, dir, p.cfg.Rasterizer, args, tail.add); err != nil {
		if binaryMissing(err) {
			return nil, notInstalled("rasterize", p.cfg.Rasterizer, err)
		}
		detail := err.Error()
		if out := tail.String(); out != "" {
			detail += ": " + out
		}
		return nil, services.Wrap(services.ErrRasterize, "latex", "rasterize", "Erro ao gerar PNG: "+detail, err)
	}

	data, err := os.ReadFile(outputStem + ".png")
	if err != nil {
		return nil, services.Wrap(services.ErrRasterize, "latex", "rasterize", "Erro ao gerar PNG: "+err.Error(), err)
	}
	if !isPNG(data) {
		return nil, services.Wrap(services.ErrRasterize, "latex", "rasterize", "Erro ao gerar PNG: saída não é PNG", nil)
	}
	if p.cfg.MaxWidth > 0 {
		data, err = limitWidth(data, p.cfg.MaxWidth)
		if err != nil {
			return nil, services.Wrap(services.ErrRasterize, "latex", "resize", "Erro ao gerar PNG: "+err.Error(), err)
		}
	}
	return data, nil
}

// binaryMissing reports a launch failure caused by an absent binary, whether
// it was looked up on PATH or configured as a path.
func binaryMissing(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var startErr *StartError
	return errors.As(err, &startErr) && errors.Is(startErr.Err, fs.ErrNotExist)
}

func notInstalled(op, binary string, err error) error {
	return services.Wrap(
		services.ErrCompilerNotFound,
		"latex",
		op,
		binary+" não está instalado no servidor.",
		err,
	)
}

// CompileError carries the end of the compiler output for a failed build.
type CompileError struct {
	Tail string
	Err  error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("latex compile: no pdf produced: %v", e.Err)
	}
	return "latex compile: no pdf produced"
}

func (e *CompileError) Unwrap() error { return e.Err }

// outputTail keeps the most recent process output without holding the full
// log in memory.
type outputTail struct {
	limit int
	lines []string
	size  int
}

func newOutputTail(limit int) *outputTail {
	return &outputTail{limit: limit}
}

func (t *outputTail) add(line string) {
	if len(line) > maxTailLength {
		line = line[len(line)-maxTailLength:]
	}
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	budget := t.limit*tailHeadroom + 1
	for len(t.lines) > 1 && t.size-len(t.lines[0])-1 >= budget {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

// String returns at most limit characters from the end of the output.
func (t *outputTail) String() string {
	joined := strings.Join(t.lines, "\n")
	runes := []rune(joined)
	if len(runes) > t.limit {
		runes = runes[len(runes)-t.limit:]
	}
	return string(runes)
}
