package config

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeModels()
	c.normalizeRetry()
	if err := c.normalizeLaTeX(); err != nil {
		return err
	}
	c.normalizeLogging()
	// Needs the normalized retry and timeout values above.
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = int(math.Ceil(c.RequestBudget().Seconds())) + writeTimeoutMarginSeconds
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if c.Server.Host == "" {
		c.Server.Host = defaultServerHost
	}
	// PORT is injected by most hosting platforms and wins over the file value.
	if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("PORT: invalid value %q", value)
		}
		c.Server.Port = port
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	var err error
	if c.Server.StaticDir, err = expandPath(strings.TrimSpace(c.Server.StaticDir)); err != nil {
		return fmt.Errorf("server.static_dir: %w", err)
	}
	if c.Server.LockFile, err = expandPath(strings.TrimSpace(c.Server.LockFile)); err != nil {
		return fmt.Errorf("server.lock_file: %w", err)
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	origins := make([]string, 0, len(c.Server.CORSOrigins))
	for _, origin := range c.Server.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Server.CORSOrigins = origins
	return nil
}

func (c *Config) normalizeLLM() {
	if value, ok := os.LookupEnv("MATHTIKZ_PROVIDER"); ok && strings.TrimSpace(value) != "" {
		c.LLM.Provider = value
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}

	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, name := range apiKeyEnvNames(c.LLM.Provider) {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}

	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		switch c.LLM.Provider {
		case ProviderGemini:
			c.LLM.BaseURL = defaultGeminiBaseURL
		default:
			c.LLM.BaseURL = defaultOpenRouterBaseURL
		}
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultMaxTokens
	}
}

// apiKeyEnvNames lists credential variables in lookup order for a provider.
func apiKeyEnvNames(provider string) []string {
	switch provider {
	case ProviderGemini:
		return []string{"MATHTIKZ_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}
	default:
		return []string{"MATHTIKZ_API_KEY", "OPENROUTER_API_KEY"}
	}
}

func (c *Config) normalizeModels() {
	if value, ok := os.LookupEnv("MATHTIKZ_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.Models.Default = value
	}
	c.Models.Default = strings.TrimSpace(c.Models.Default)

	// The stock catalog uses OpenRouter ids; swap in native ids when the file
	// selects gemini without customizing the catalog.
	if c.LLM.Provider == ProviderGemini &&
		(c.Models.Default == "" || c.Models.Default == defaultModel) &&
		slices.Equal(c.Models.Allowed, DefaultAllowedModels()) {
		c.Models.Default = defaultGeminiModel
		c.Models.Allowed = DefaultGeminiModels()
	}
	if c.Models.Default == "" {
		c.Models.Default = defaultModel
	}

	seen := make(map[string]struct{}, len(c.Models.Allowed)+1)
	allowed := make([]string, 0, len(c.Models.Allowed)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		allowed = append(allowed, id)
	}
	add(c.Models.Default)
	for _, id := range c.Models.Allowed {
		add(id)
	}
	c.Models.Allowed = allowed

	if len(c.Models.Aliases) > 0 {
		aliases := make(map[string]string, len(c.Models.Aliases))
		for key, target := range c.Models.Aliases {
			key = strings.TrimSpace(key)
			target = strings.TrimSpace(target)
			if key == "" || target == "" {
				continue
			}
			aliases[key] = target
		}
		c.Models.Aliases = aliases
	}
}

func (c *Config) normalizeRetry() {
	c.Retry.Backoff = strings.ToLower(strings.TrimSpace(c.Retry.Backoff))
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = BackoffAdditive
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.Backoff == BackoffExponential && c.Retry.Factor == 0 {
		c.Retry.Factor = defaultRetryFactor
	}
	if c.Retry.MaxWaitSeconds == 0 {
		c.Retry.MaxWaitSeconds = defaultRetryMaxWait
	}
}

func (c *Config) normalizeLaTeX() error {
	c.LaTeX.Compiler = strings.TrimSpace(c.LaTeX.Compiler)
	if c.LaTeX.Compiler == "" {
		c.LaTeX.Compiler = defaultCompiler
	}
	c.LaTeX.Rasterizer = strings.TrimSpace(c.LaTeX.Rasterizer)
	if c.LaTeX.Rasterizer == "" {
		c.LaTeX.Rasterizer = defaultRasterizer
	}
	if c.LaTeX.TimeoutSeconds <= 0 {
		c.LaTeX.TimeoutSeconds = defaultCompileTimeout
	}
	if c.LaTeX.DPI == 0 {
		c.LaTeX.DPI = defaultDPI
	}
	if c.LaTeX.LogTailChars <= 0 {
		c.LaTeX.LogTailChars = defaultLogTailChars
	}
	var err error
	if c.LaTeX.WorkDir, err = expandPath(strings.TrimSpace(c.LaTeX.WorkDir)); err != nil {
		return fmt.Errorf("latex.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}
