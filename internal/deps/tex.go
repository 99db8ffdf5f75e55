package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const kpsewhichTimeout = 5 * time.Second

// TeXFiles are the classes and packages generated documents rely on.
var TeXFiles = []string{"standalone.cls", "tikz.sty", "pgfplots.sty", "amsmath.sty", "amssymb.sty"}

// CheckTeXFiles asks kpsewhich for each file and reports which ones the TeX
// installation can resolve. A missing kpsewhich marks every file unavailable.
func CheckTeXFiles(ctx context.Context, kpsewhich string, files []string) []Status {
	kpsewhich = strings.TrimSpace(kpsewhich)
	if kpsewhich == "" {
		kpsewhich = "kpsewhich"
	}
	results := make([]Status, 0, len(files))
	resolved, lookErr := exec.LookPath(kpsewhich)
	for _, file := range files {
		status := Status{
			Name:        file,
			Command:     kpsewhich,
			Description: "TeX package",
		}
		if lookErr != nil {
			status.Detail = fmt.Sprintf("binary %q not found", kpsewhich)
			results = append(results, status)
			continue
		}
		path, err := locate(ctx, resolved, file)
		switch {
		case err != nil:
			status.Detail = err.Error()
		case path == "":
			status.Detail = "not installed"
		default:
			status.Available = true
			status.Detail = path
		}
		results = append(results, status)
	}
	return results
}

func locate(ctx context.Context, kpsewhich, file string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, kpsewhichTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, kpsewhich, file).Output() //nolint:gosec
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// kpsewhich exits 1 when the file is unknown.
			return "", nil
		}
		return "", fmt.Errorf("kpsewhich %s: %w", file, err)
	}
	return strings.TrimSpace(string(out)), nil
}
