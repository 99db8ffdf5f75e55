package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener configuration.
type Server struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	StaticDir           string   `toml:"static_dir"`
	LockFile            string   `toml:"lock_file"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
	MaxBodyBytes        int64    `toml:"max_body_bytes"`
	CORSOrigins         []string `toml:"cors_origins"`
}

// LLM contains upstream provider connection and generation settings.
type LLM struct {
	// Provider selects the payload shape: "openrouter" (chat completions) or
	// "gemini" (generateContent).
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	// SystemPrompt overrides the built-in instruction when non-empty.
	SystemPrompt string `toml:"system_prompt"`
}

// Models contains the caller-facing model catalog.
type Models struct {
	Default string            `toml:"default"`
	Allowed []string          `toml:"allowed"`
	Aliases map[string]string `toml:"aliases"`
	// Strict rejects unknown non-empty model keys instead of substituting the default.
	Strict bool `toml:"strict"`
}

// Retry contains the bounded retry policy for upstream calls.
type Retry struct {
	MaxAttempts        int     `toml:"max_attempts"`
	InitialWaitSeconds float64 `toml:"initial_wait_seconds"`
	Backoff            string  `toml:"backoff"`
	StepSeconds        float64 `toml:"step_seconds"`
	Factor             float64 `toml:"factor"`
	MaxWaitSeconds     float64 `toml:"max_wait_seconds"`
	HonorRetryAfter    bool    `toml:"honor_retry_after"`
}

// LaTeX contains compilation and rasterization settings.
type LaTeX struct {
	Compiler       string `toml:"compiler"`
	Rasterizer     string `toml:"rasterizer"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DPI            int    `toml:"dpi"`
	LogTailChars   int    `toml:"log_tail_chars"`
	WorkDir        string `toml:"work_dir"`
	MaxWidth       int    `toml:"max_width"`
	ShellEscape    bool   `toml:"shell_escape"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for MathTikZ.
//
// Configuration sections by subsystem:
//   - Server: listener address, static front-end, request limits
//   - LLM: provider selection, credentials, generation parameters
//   - Models: catalog of caller-facing model keys
//   - Retry: backoff policy for rate-limited and network failures
//   - LaTeX: compiler and rasterizer invocation
//   - Logging: log format and level
type Config struct {
	Server  Server  `toml:"server"`
	LLM     LLM     `toml:"llm"`
	Models  Models  `toml:"models"`
	Retry   Retry   `toml:"retry"`
	LaTeX   LaTeX   `toml:"latex"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is applied to the process environment first without
// overriding variables that are already set.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mathtikz.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ListenAddress returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HasAPIKey reports whether an upstream credential is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// SystemInstruction returns the instruction sent with every generation request.
func (c *Config) SystemInstruction() string {
	if prompt := strings.TrimSpace(c.LLM.SystemPrompt); prompt != "" {
		return prompt
	}
	return DefaultSystemPrompt
}

// LLMTimeout returns the per-attempt upstream timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// CompileTimeout returns the bound on a single compiler invocation.
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.LaTeX.TimeoutSeconds) * time.Second
}

// RequestBudget is the longest a single request can take: every generation
// attempt timing out with the longest wait between attempts, or the compiler
// and rasterizer both running to their timeout.
func (c *Config) RequestBudget() time.Duration {
	attempts := c.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	attemptTimeout := c.LLM.TimeoutSeconds
	if attemptTimeout <= 0 {
		attemptTimeout = defaultLLMTimeoutSeconds
	}
	generation := time.Duration(attempts*attemptTimeout)*time.Second +
		time.Duration(float64(attempts-1)*c.Retry.MaxWaitSeconds*float64(time.Second))
	render := 2 * c.CompileTimeout()
	return max(generation, render)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
