package api

import (
	"mathtikz/internal/catalog"
	"mathtikz/internal/deps"
	"mathtikz/internal/services/llm"
)

// Health status values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// FromProbe converts an upstream probe result.
func FromProbe(result llm.ProbeResult) DiagnosticResponse {
	return DiagnosticResponse{
		Status: result.Status,
		OK:     result.OK,
		Body:   result.Body,
	}
}

// FromDependencies converts dependency checks, preserving order.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// NewHealthResponse derives the overall status: "ok" only when a credential
// is configured and every required binary is present.
func NewHealthResponse(provider, defaultModel string, llmConfigured bool, statuses []deps.Status) HealthResponse {
	toolchain := deps.RequiredAvailable(statuses)
	status := HealthOK
	if !toolchain || !llmConfigured {
		status = HealthDegraded
	}
	return HealthResponse{
		Status:        status,
		Provider:      provider,
		DefaultModel:  defaultModel,
		LLMConfigured: llmConfigured,
		Toolchain:     toolchain,
		Dependencies:  FromDependencies(statuses),
	}
}

// FromCatalog lists catalog entries in configuration order.
func FromCatalog(cat *catalog.Catalog) []ModelInfo {
	if cat == nil {
		return nil
	}
	entries := cat.Entries()
	out := make([]ModelInfo, len(entries))
	for i, entry := range entries {
		out[i] = ModelInfo{ID: entry.ID, Aliases: entry.Aliases, Default: entry.Default}
	}
	return out
}
