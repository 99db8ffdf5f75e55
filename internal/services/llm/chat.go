package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"mathtikz/internal/services"
)

// ChatCompletions speaks the OpenAI-compatible chat completions format used
// by OpenRouter.
type ChatCompletions struct{}

func (ChatCompletions) Name() string { return "openrouter" }

func (ChatCompletions) APIKeyHint() string { return "OPENROUTER_API_KEY" }

func (ChatCompletions) Endpoint(baseURL, _ string) string {
	return joinURL(baseURL, "chat", "completions")
}

func (ChatCompletions) ModelsEndpoint(baseURL string) string {
	return joinURL(baseURL, "models")
}

func (ChatCompletions) Authorize(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func (ChatCompletions) BuildPayload(systemInstruction, prompt, model string, params Params) ([]byte, error) {
	temperature := float32(params.Temperature)
	if temperature == 0 {
		// go-openai drops a zero temperature via omitempty.
		temperature = math.SmallestNonzeroFloat32
	}
	payload := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   params.MaxTokens,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chat payload: %w", err)
	}
	return encoded, nil
}

type chatEnvelope struct {
	openai.ChatCompletionResponse
	Error *openai.APIError `json:"error,omitempty"`
}

func (ChatCompletions) ExtractText(body []byte) (string, error) {
	var envelope chatEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", malformed(body, err)
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return "", services.Wrap(
			services.ErrUpstream,
			"llm",
			"extract",
			"Erro do modelo: "+envelope.Error.Message,
			nil,
		)
	}
	if len(envelope.Choices) == 0 {
		return "", nil
	}
	return envelope.Choices[0].Message.Content, nil
}

func malformed(body []byte, err error) error {
	return services.Wrap(
		services.ErrMalformedResponse,
		"llm",
		"extract",
		"Resposta inválida: "+Truncate(string(body), previewLimit),
		err,
	)
}
