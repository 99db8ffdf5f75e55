package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable. A missing API key is not an
// error here; generation requests report it when they run.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLaTeX(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateWriteTimeout()
}

// validateWriteTimeout rejects a write timeout that would cut a response off
// before the retry loop or the compiler could finish. Zero is filled in by
// normalize.
func (c *Config) validateWriteTimeout() error {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return nil
	}
	budget := c.RequestBudget()
	if time.Duration(c.Server.WriteTimeoutSeconds)*time.Second <= budget {
		return fmt.Errorf("server.write_timeout_seconds must exceed the worst-case request time of %s (got %ds)", budget, c.Server.WriteTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q (got %q)", ProviderOpenRouter, ProviderGemini, c.LLM.Provider)
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL (got %q)", c.LLM.BaseURL)
	}
	if c.LLM.TimeoutSeconds > 300 {
		return errors.New("llm.timeout_seconds must not exceed 300")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateModels() error {
	if c.Models.Default == "" {
		return errors.New("models.default must be set")
	}
	for key, target := range c.Models.Aliases {
		if c.Models.Strict && !containsString(c.Models.Allowed, target) {
			return fmt.Errorf("models.aliases.%s points to %q which is not in models.allowed", key, target)
		}
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return fmt.Errorf("retry.max_attempts must be between 1 and 10 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialWaitSeconds < 0 {
		return errors.New("retry.initial_wait_seconds must not be negative")
	}
	if c.Retry.MaxWaitSeconds < 0 {
		return errors.New("retry.max_wait_seconds must not be negative")
	}
	switch c.Retry.Backoff {
	case BackoffAdditive:
		if c.Retry.StepSeconds < 0 {
			return errors.New("retry.step_seconds must not be negative")
		}
	case BackoffExponential:
		if c.Retry.Factor < 1 {
			return errors.New("retry.factor must be at least 1")
		}
	default:
		return fmt.Errorf("retry.backoff must be %q or %q (got %q)", BackoffAdditive, BackoffExponential, c.Retry.Backoff)
	}
	return nil
}

func (c *Config) validateLaTeX() error {
	if c.LaTeX.DPI < 36 || c.LaTeX.DPI > 1200 {
		return fmt.Errorf("latex.dpi must be between 36 and 1200 (got %d)", c.LaTeX.DPI)
	}
	if c.LaTeX.TimeoutSeconds > 600 {
		return errors.New("latex.timeout_seconds must not exceed 600")
	}
	if c.LaTeX.MaxWidth < 0 {
		return errors.New("latex.max_width must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
