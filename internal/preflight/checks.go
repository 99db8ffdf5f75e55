package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"mathtikz/internal/config"
	"mathtikz/internal/deps"
	"mathtikz/internal/services"
	"mathtikz/internal/services/llm"
)

// CheckLLM verifies that the provider is reachable and the key is accepted.
// It performs a single model-listing request (no retries).
func CheckLLM(ctx context.Context, name string, client *llm.Client) Result {
	if client == nil || !client.HasAPIKey() {
		return Result{Name: name, Detail: "API key missing"}
	}
	probe, err := client.Probe(ctx)
	if err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	if !probe.OK {
		return Result{Name: name, Detail: fmt.Sprintf("%s returned HTTP %d", client.Provider().Name(), probe.Status)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the render pipeline runs.
// Both the server and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.ToolchainRequirements(cfg))
}

// CheckTeXPackages reports whether the classes and packages generated code
// relies on are installed.
func CheckTeXPackages(ctx context.Context) []deps.Status {
	return deps.CheckTeXFiles(ctx, "kpsewhich", deps.TeXFiles)
}

// summarizeLLMError produces a human-readable summary for LLM check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	if msg := services.PublicMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}
