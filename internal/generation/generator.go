package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"mathtikz/internal/catalog"
	"mathtikz/internal/config"
	"mathtikz/internal/logging"
	"mathtikz/internal/services"
	"mathtikz/internal/services/llm"
)

// Request is one generation call.
type Request struct {
	Prompt   string
	ModelKey string
}

// Result is the generated LaTeX and how it was obtained.
type Result struct {
	Code     string
	Model    string
	Attempts int
	Fallback bool
}

// Generator orchestrates prompt validation, model resolution, and the
// upstream call.
type Generator struct {
	client            *llm.Client
	catalog           *catalog.Catalog
	policy            llm.Policy
	systemInstruction string
	logger            *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPolicy replaces the retry policy.
func WithPolicy(policy llm.Policy) Option {
	return func(g *Generator) {
		g.policy = policy
	}
}

// WithSystemInstruction replaces the instruction sent with every prompt.
func WithSystemInstruction(instruction string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(instruction) != "" {
			g.systemInstruction = instruction
		}
	}
}

// New constructs a Generator around an existing client and catalog.
func New(client *llm.Client, cat *catalog.Catalog, opts ...Option) *Generator {
	g := &Generator{
		client:            client,
		catalog:           cat,
		policy:            llm.Policy{MaxAttempts: 1},
		systemInstruction: config.DefaultSystemPrompt,
		logger:            logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "generation")
	return g
}

// NewFromConfig wires the provider, client, catalog, and retry policy
// described by cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, clientOpts ...llm.Option) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("generation: config required")
	}
	provider, err := llm.ProviderFor(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(provider, llm.ConfigFromApp(cfg), clientOpts...)
	return New(client, cat,
		WithLogger(logger),
		WithPolicy(llm.PolicyFromConfig(cfg)),
		WithSystemInstruction(cfg.SystemInstruction()),
	), nil
}

// Client exposes the underlying upstream client (diagnostics).
func (g *Generator) Client() *llm.Client {
	return g.client
}

// Catalog exposes the model catalog.
func (g *Generator) Catalog() *catalog.Catalog {
	return g.catalog
}

// NormalizePrompt applies Unicode NFC normalization and trims surrounding
// whitespace.
func NormalizePrompt(prompt string) string {
	return strings.TrimSpace(norm.NFC.String(prompt))
}

// Generate produces LaTeX source for req. The prompt is checked before any
// network traffic; a missing credential fails before any request is sent.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	prompt := NormalizePrompt(req.Prompt)
	if prompt == "" {
		return Result{}, services.Wrap(services.ErrValidation, "generation", "validate", "Prompt vazio.", nil)
	}
	if !g.client.HasAPIKey() {
		return Result{}, services.Wrap(
			services.ErrConfiguration,
			"generation",
			"configure",
			g.client.Provider().APIKeyHint()+" não configurada no servidor.",
			nil,
		)
	}

	resolution, err := g.catalog.Lookup(req.ModelKey)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithModel(ctx, resolution.Model)
	logger := logging.WithContext(ctx, g.logger)
	if resolution.Fallback {
		logger.Info("model key not in catalog",
			logging.Args(append(logging.DecisionAttrs("model_resolution", "default", "unknown model key"),
				logging.String("requested_model", resolution.Key),
			)...)...,
		)
	}

	policy := g.policy
	policy.OnRetry = func(ev llm.RetryEvent) {
		logging.WarnWithContext(logger, "upstream attempt failed; backing off", "llm_retry",
			logging.Int("attempt", ev.Attempt),
			logging.Duration("wait", ev.Wait),
			logging.String("reason", ev.Reason.String()),
			logging.String(logging.FieldImpact, "generation delayed"),
			logging.String(logging.FieldErrorHint, "upstream throttling or connectivity"),
		)
		if g.policy.OnRetry != nil {
			g.policy.OnRetry(ev)
		}
	}

	resp, trace, err := g.client.Request(ctx, policy, g.systemInstruction, prompt, resolution.Model)
	if err != nil {
		return Result{Model: resolution.Model, Attempts: trace.Attempts}, err
	}
	code, err := llm.Extract(g.client.Provider(), resp)
	if err != nil {
		return Result{Model: resolution.Model, Attempts: trace.Attempts}, err
	}
	logger.Debug("generation complete",
		logging.Int("attempts", trace.Attempts),
		logging.Int("code_length", len(code)),
	)
	return Result{
		Code:     code,
		Model:    resolution.Model,
		Attempts: trace.Attempts,
		Fallback: resolution.Fallback,
	}, nil
}
