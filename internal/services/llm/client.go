package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mathtikz/internal/config"
	"mathtikz/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20
	previewLimit       = 300
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Referer        string
	Title          string
	TimeoutSeconds int
	Params         Params
}

// ConfigFromApp extracts client settings from the [llm] section.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		Params: Params{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	}
}

// Client issues single upstream requests. It never retries on its own.
type Client struct {
	cfg        Config
	provider   Provider
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client for provider using the supplied configuration.
func NewClient(provider Provider, cfg Config, opts ...Option) *Client {
	if provider == nil {
		provider = ChatCompletions{}
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
			Params:         cfg.Params,
		},
		provider:   provider,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Provider returns the wire format strategy in use.
func (c *Client) Provider() Provider {
	return c.provider
}

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.cfg.APIKey != ""
}

// Response is the raw outcome of one upstream call.
type Response struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError describes a well-formed but unsuccessful HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func statusError(resp Response) *StatusError {
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       Truncate(strings.TrimSpace(string(resp.Body)), previewLimit),
		RetryAfter: resp.RetryAfter,
	}
}

// Send issues exactly one POST for the given prompt. Transport failures are
// reported as services.ErrNetwork; any HTTP status, including errors, is
// returned as a Response.
func (c *Client) Send(ctx context.Context, systemInstruction, prompt, model string) (Response, error) {
	if c.cfg.APIKey == "" {
		return Response{}, missingKeyError(c.provider)
	}
	payload, err := c.provider.BuildPayload(systemInstruction, prompt, model, c.cfg.Params)
	if err != nil {
		return Response{}, fmt.Errorf("llm request: %w", err)
	}
	endpoint := c.provider.Endpoint(c.cfg.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.provider.Authorize(req, c.cfg.APIKey)
	c.setAttributionHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, networkError(err, c.timeout())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, networkError(err, c.timeout())
	}
	out := Response{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode == http.StatusTooManyRequests {
		out.RetryAfter, _ = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return out, nil
}

func (c *Client) setAttributionHeaders(req *http.Request) {
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
}

func (c *Client) timeout() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func missingKeyError(p Provider) error {
	return services.Wrap(
		services.ErrConfiguration,
		"llm",
		"request",
		p.APIKeyHint()+" não configurada no servidor.",
		nil,
	)
}

func networkError(err error, timeout time.Duration) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("llm request: %w", err)
	}
	return services.Wrap(
		services.ErrNetwork,
		"llm",
		"request",
		"Erro ao contactar o modelo: "+err.Error(),
		fmt.Errorf("timeout=%s: %w", timeout, err),
	)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
