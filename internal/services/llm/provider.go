package llm

import (
	"fmt"
	"net/http"
	"strings"

	"mathtikz/internal/config"
)

// Params are the generation parameters carried in every payload.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Provider encapsulates one upstream wire format.
type Provider interface {
	Name() string
	// Endpoint returns the generation URL for model.
	Endpoint(baseURL, model string) string
	// ModelsEndpoint returns the model listing URL used for diagnostics.
	ModelsEndpoint(baseURL string) string
	// Authorize sets credential headers on req.
	Authorize(req *http.Request, apiKey string)
	// BuildPayload encodes a fresh request body.
	BuildPayload(systemInstruction, prompt, model string, params Params) ([]byte, error)
	// ExtractText locates the generated text in a 2xx response body. Missing
	// nested fields yield an empty string; bodies that are not JSON fail with
	// services.ErrMalformedResponse.
	ExtractText(body []byte) (string, error)
	// APIKeyHint names the environment variable operators should set.
	APIKeyHint() string
}

// ProviderFor returns the strategy registered under name.
func ProviderFor(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ProviderOpenRouter, "":
		return ChatCompletions{}, nil
	case config.ProviderGemini:
		return GenerateContent{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}

func joinURL(base string, elems ...string) string {
	out := strings.TrimRight(base, "/")
	for _, elem := range elems {
		out += "/" + strings.Trim(elem, "/")
	}
	return out
}
