package preflight

import (
	"context"
	"os"

	"mathtikz/internal/config"
	"mathtikz/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// client may be nil, in which case the LLM check is built from cfg.
func RunAll(ctx context.Context, cfg *config.Config, client *llm.Client) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Work directory (always checked)
	results = append(results, CheckDirectoryAccess("Work directory", WorkDir(cfg)))

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Passed = true
				result.Detail += " (optional)"
			}
		}
		results = append(results, result)
	}

	if cfg.HasAPIKey() {
		if client == nil {
			client = ClientFromConfig(cfg)
		}
		results = append(results, CheckLLM(ctx, "LLM provider", client))
	} else {
		results = append(results, Result{Name: "LLM provider", Detail: "API key missing"})
	}

	return results
}

// WorkDir returns the directory compile jobs are created in.
func WorkDir(cfg *config.Config) string {
	if cfg.LaTeX.WorkDir != "" {
		return cfg.LaTeX.WorkDir
	}
	return os.TempDir()
}

// ClientFromConfig builds a single-attempt upstream client for checks.
func ClientFromConfig(cfg *config.Config) *llm.Client {
	provider, err := llm.ProviderFor(cfg.LLM.Provider)
	if err != nil {
		provider = llm.ChatCompletions{}
	}
	return llm.NewClient(provider, llm.ConfigFromApp(cfg))
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
