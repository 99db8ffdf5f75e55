package llm

import (
	"strings"

	"mathtikz/internal/services"
)

const fenceMarker = "```"

// Sanitize trims text and removes markdown code fences wrapping it. An opening
// fence line (``` plus an optional language tag) is dropped through its
// newline; a closing fence is dropped from the end. Stripping repeats until
// nothing changes, so Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	current := strings.TrimSpace(text)
	for {
		next := stripFences(current)
		if next == current {
			return current
		}
		current = next
	}
}

func stripFences(text string) string {
	if strings.HasPrefix(text, fenceMarker) {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimLeft(text, "`")
		}
	}
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, fenceMarker) {
		text = strings.TrimSpace(strings.TrimSuffix(text, fenceMarker))
	}
	return text
}

// Extract pulls the generated text out of a successful response and
// sanitizes it. An empty result fails with services.ErrEmptyGeneration.
func Extract(p Provider, resp Response) (string, error) {
	text, err := p.ExtractText(resp.Body)
	if err != nil {
		return "", err
	}
	code := Sanitize(text)
	if code == "" {
		return "", services.Wrap(
			services.ErrEmptyGeneration,
			"llm",
			"extract",
			"O modelo não devolveu código LaTeX válido.",
			nil,
		)
	}
	return code, nil
}
