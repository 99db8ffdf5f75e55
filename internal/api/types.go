package api

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse carries the generated LaTeX source.
type GenerateResponse struct {
	Code string `json:"code"`
}

// RenderRequest is the body of POST /png.
type RenderRequest struct {
	Code string `json:"code"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DiagnosticResponse summarizes the upstream model-listing probe.
type DiagnosticResponse struct {
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Body   string `json:"body"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse reports whether the server can serve both endpoints.
type HealthResponse struct {
	Status        string             `json:"status"`
	Provider      string             `json:"provider"`
	DefaultModel  string             `json:"default_model"`
	LLMConfigured bool               `json:"llm_configured"`
	Toolchain     bool               `json:"toolchain"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// ModelInfo describes one catalog entry.
type ModelInfo struct {
	ID      string   `json:"id"`
	Aliases []string `json:"aliases,omitempty"`
	Default bool     `json:"default"`
}
