package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"mathtikz/internal/config"
)

// Requirement defines an external dependency MathTikZ relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ToolchainRequirements lists the binaries the rendering pipeline executes.
func ToolchainRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "LaTeX compiler", Command: cfg.LaTeX.Compiler, Description: "Compiles LaTeX source to PDF"},
		{Name: "Rasterizer", Command: cfg.LaTeX.Rasterizer, Description: "Converts the first PDF page to PNG"},
		{Name: "kpsewhich", Command: "kpsewhich", Description: "Locates TeX packages", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// RequiredAvailable reports whether every non-optional dependency is present.
func RequiredAvailable(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			return false
		}
	}
	return true
}
