package config

const (
	defaultConfigPath          = "~/.config/mathtikz/config.toml"
	defaultServerHost          = "0.0.0.0"
	defaultServerPort          = 8080
	defaultReadTimeoutSeconds  = 15
	writeTimeoutMarginSeconds  = 30
	defaultMaxBodyBytes        = 1 << 20
	defaultProvider            = ProviderOpenRouter
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1"
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultReferer             = "https://mathtikz.app"
	defaultTitle               = "MathTikZ"
	defaultLLMTimeoutSeconds   = 30
	defaultTemperature         = 0.2
	defaultMaxTokens           = 2048
	defaultModel               = "google/gemini-2.0-flash-001"
	defaultGeminiModel         = "gemini-2.0-flash"
	defaultRetryMaxAttempts    = 3
	defaultRetryInitialWait    = 5
	defaultRetryStep           = 5
	defaultRetryFactor         = 2
	defaultRetryMaxWait        = 60
	defaultCompiler            = "pdflatex"
	defaultRasterizer          = "pdftoppm"
	defaultCompileTimeout      = 30
	defaultDPI                 = 200
	defaultLogTailChars        = 500
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Provider identifiers accepted by llm.provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Backoff identifiers accepted by retry.backoff.
const (
	BackoffAdditive    = "additive"
	BackoffExponential = "exponential"
)

// DefaultSystemPrompt instructs the model to answer with a complete standalone
// TikZ document for Portuguese school mathematics.
const DefaultSystemPrompt = `És um especialista em TikZ e LaTeX para matemática escolar portuguesa (ensino básico e secundário).
Dado um prompt descrevendo uma imagem matemática, gera APENAS o código LaTeX completo e funcional.

Regras obrigatórias:
- Usa \documentclass[border=8pt]{standalone}
- Inclui \usepackage{tikz} e outros packages necessários (pgfplots, amsmath, amssymb, etc.)
- Usa \usetikzlibrary adequadas: arrows.meta, angles, quotes, calc, patterns, decorations.pathreplacing
- Se usares pgfplots, usa SEMPRE \pgfplotsset{compat=1.14} (nunca versões superiores)
- Texto e labels em português
- Código limpo, com comentários
- Imagem com boa margem e proporções para impressão A4
- Verifica SEMPRE a correção matemática: coordenadas, interseções, vértices, ângulos e labels devem ser matematicamente exatos
- Em gráficos de funções: calcula analiticamente os zeros, vértices e pontos notáveis antes de os marcar
- Labels e coordenadas NUNCA devem sobrepor-se: usa deslocamentos explícitos com node[above left], node[below right], node[anchor=north], etc.
- Nas marcas dos eixos usa node[below] para eixo x e node[left] para eixo y, com espaçamento suficiente
- RESPONDE APENAS com o código LaTeX puro, sem explicações, sem blocos markdown, sem crases.`

// DefaultAllowedModels lists the upstream models offered to callers out of the box.
func DefaultAllowedModels() []string {
	return []string{
		"google/gemini-2.0-flash-001",
		"meta-llama/llama-3.3-70b-instruct:free",
		"deepseek/deepseek-r1:free",
	}
}

// DefaultGeminiModels lists native model ids used when the gemini provider is
// selected without a custom catalog.
func DefaultGeminiModels() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.5-flash",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Host:                defaultServerHost,
			Port:                defaultServerPort,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			MaxBodyBytes:        defaultMaxBodyBytes,
			CORSOrigins:         []string{"*"},
		},
		LLM: LLM{
			Provider:       defaultProvider,
			Referer:        defaultReferer,
			Title:          defaultTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
		},
		Models: Models{
			Default: defaultModel,
			Allowed: DefaultAllowedModels(),
		},
		Retry: Retry{
			MaxAttempts:        defaultRetryMaxAttempts,
			InitialWaitSeconds: defaultRetryInitialWait,
			Backoff:            BackoffAdditive,
			StepSeconds:        defaultRetryStep,
			Factor:             defaultRetryFactor,
			MaxWaitSeconds:     defaultRetryMaxWait,
			HonorRetryAfter:    true,
		},
		LaTeX: LaTeX{
			Compiler:       defaultCompiler,
			Rasterizer:     defaultRasterizer,
			TimeoutSeconds: defaultCompileTimeout,
			DPI:            defaultDPI,
			LogTailChars:   defaultLogTailChars,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
