package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mathtikz/internal/services"
)

// GenerateContent speaks the Google Gemini generateContent format.
type GenerateContent struct{}

func (GenerateContent) Name() string { return "gemini" }

func (GenerateContent) APIKeyHint() string { return "GEMINI_API_KEY" }

func (GenerateContent) Endpoint(baseURL, model string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return joinURL(baseURL, "models", model+":generateContent")
}

func (GenerateContent) ModelsEndpoint(baseURL string) string {
	return joinURL(baseURL, "models")
}

func (GenerateContent) Authorize(req *http.Request, apiKey string) {
	req.Header.Set("x-goog-api-key", apiKey)
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (GenerateContent) BuildPayload(systemInstruction, prompt, _ string, params Params) ([]byte, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
		},
	}
	if systemInstruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gemini payload: %w", err)
	}
	return encoded, nil
}

func (GenerateContent) ExtractText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(body, err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", services.Wrap(services.ErrUpstream, "llm", "extract", "Erro do modelo: "+resp.Error.Message, nil)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", services.Wrap(
				services.ErrEmptyGeneration,
				"llm",
				"extract",
				"O modelo recusou o pedido: "+resp.PromptFeedback.BlockReason,
				nil,
			)
		}
		return "", nil
	}
	// Thinking models emit reasoning parts ahead of the answer.
	for _, part := range resp.Candidates[0].Content.Parts {
		if !part.Thought {
			return part.Text, nil
		}
	}
	return "", nil
}
