package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mathtikz/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PORT", "MATHTIKZ_PROVIDER", "MATHTIKZ_MODEL", "MATHTIKZ_API_KEY",
		"OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.ListenAddress() != "0.0.0.0:8080" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress())
	}
	if cfg.HasAPIKey() {
		t.Fatal("expected no api key by default")
	}
	if cfg.LLM.Provider != config.ProviderOpenRouter {
		t.Fatalf("unexpected provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("unexpected base url %q", cfg.LLM.BaseURL)
	}
	if cfg.Models.Default != "google/gemini-2.0-flash-001" {
		t.Fatalf("unexpected default model %q", cfg.Models.Default)
	}
	if len(cfg.Models.Allowed) != 3 {
		t.Fatalf("expected three allowed models, got %v", cfg.Models.Allowed)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialWaitSeconds != 5 || cfg.Retry.StepSeconds != 5 {
		t.Fatalf("unexpected retry defaults %+v", cfg.Retry)
	}
	if cfg.LaTeX.DPI != 200 || cfg.LaTeX.LogTailChars != 500 {
		t.Fatalf("unexpected latex defaults %+v", cfg.LaTeX)
	}
	if cfg.CompileTimeout().Seconds() != 30 || cfg.LLMTimeout().Seconds() != 30 {
		t.Fatal("expected 30 second timeouts")
	}
	if !strings.Contains(cfg.SystemInstruction(), `\documentclass[border=8pt]{standalone}`) {
		t.Fatal("expected built-in system instruction")
	}
}

func TestLoadUsesEnvironmentFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "  or-key ")
	t.Setenv("PORT", "5000")
	t.Setenv("MATHTIKZ_MODEL", "deepseek/deepseek-r1:free")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "or-key" {
		t.Fatalf("expected trimmed env key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
	if cfg.Models.Default != "deepseek/deepseek-r1:free" {
		t.Fatalf("expected model override, got %q", cfg.Models.Default)
	}
	if cfg.Models.Allowed[0] != "deepseek/deepseek-r1:free" {
		t.Fatalf("expected default model first in allowed list, got %v", cfg.Models.Allowed)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoadGeminiProviderSwapsStockCatalog(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATHTIKZ_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Provider != config.ProviderGemini {
		t.Fatalf("unexpected provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "g-key" {
		t.Fatalf("expected gemini key, got %q", cfg.LLM.APIKey)
	}
	if !strings.Contains(cfg.LLM.BaseURL, "generativelanguage.googleapis.com") {
		t.Fatalf("unexpected base url %q", cfg.LLM.BaseURL)
	}
	if cfg.Models.Default != "gemini-2.0-flash" {
		t.Fatalf("expected native gemini default, got %q", cfg.Models.Default)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 9090

[llm]
api_key = "file-key"
base_url = "http://localhost:1234/v1/"

[models]
default = "a/model"
allowed = ["b/model", "a/model", "b/model"]
strict = true

[models.aliases]
fast = "b/model"

[retry]
backoff = "exponential"
factor = 3

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("unexpected api key %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://localhost:1234/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.LLM.BaseURL)
	}
	want := []string{"a/model", "b/model"}
	if strings.Join(cfg.Models.Allowed, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected allowed models %v", cfg.Models.Allowed)
	}
	if cfg.Models.Aliases["fast"] != "b/model" {
		t.Fatalf("unexpected aliases %v", cfg.Models.Aliases)
	}
	if cfg.Retry.Backoff != config.BackoffExponential || cfg.Retry.Factor != 3 {
		t.Fatalf("unexpected retry config %+v", cfg.Retry)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging config, got %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"provider":  func(c *config.Config) { c.LLM.Provider = "openai" },
		"base url":  func(c *config.Config) { c.LLM.BaseURL = "ftp://example" },
		"attempts":  func(c *config.Config) { c.Retry.MaxAttempts = 0 },
		"backoff":   func(c *config.Config) { c.Retry.Backoff = "random" },
		"factor":    func(c *config.Config) { c.Retry.Backoff = config.BackoffExponential; c.Retry.Factor = 0.5 },
		"dpi":       func(c *config.Config) { c.LaTeX.DPI = 5 },
		"port":      func(c *config.Config) { c.Server.Port = 70000 },
		"log level": func(c *config.Config) { c.Logging.Level = "verbose" },
		"write timeout": func(c *config.Config) {
			c.Server.WriteTimeoutSeconds = 60
		},
		"alias": func(c *config.Config) {
			c.Models.Strict = true
			c.Models.Aliases = map[string]string{"x": "unknown/model"}
		},
	}
	for name, mutate := range cases {
		cfg := config.Default()
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Models.Default != config.Default().Models.Default {
		t.Fatalf("sample default model drifted: %q", cfg.Models.Default)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("OPENROUTER_API_KEY")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENROUTER_API_KEY=dotenv-key\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		os.Unsetenv("OPENROUTER_API_KEY")
	})

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "dotenv-key" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
}

func TestWriteTimeoutCoversRequestBudget(t *testing.T) {
	clearEnv(t)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	// 3 attempts of 30s plus 2 waits of 60s.
	if got := cfg.RequestBudget(); got != 210*time.Second {
		t.Fatalf("RequestBudget = %s, want 210s", got)
	}
	if cfg.Server.WriteTimeoutSeconds <= 210 {
		t.Fatalf("derived write timeout %ds does not exceed the request budget", cfg.Server.WriteTimeoutSeconds)
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	short := "[server]\nwrite_timeout_seconds = 180\n\n[retry]\nhonor_retry_after = true\nmax_wait_seconds = 60\n"
	if err := os.WriteFile(path, []byte(short), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "server.write_timeout_seconds") {
		t.Fatalf("expected write timeout validation error, got %v", err)
	}

	fits := "[server]\nwrite_timeout_seconds = 90\n\n[retry]\nmax_attempts = 1\n"
	if err := os.WriteFile(path, []byte(fits), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(path)
	if err != nil {
		t.Fatalf("single-attempt config rejected: %v", err)
	}
	if cfg.Server.WriteTimeoutSeconds != 90 {
		t.Fatalf("explicit write timeout overridden: %d", cfg.Server.WriteTimeoutSeconds)
	}
}
