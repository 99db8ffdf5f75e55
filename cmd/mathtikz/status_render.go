package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"mathtikz/internal/deps"
	"mathtikz/internal/preflight"
)

// checkState is the outcome shown for one status row.
type checkState int

const (
	stateInfo checkState = iota
	stateReady
	stateDegraded
	stateFailed
)

var stateStyles = map[checkState]struct {
	label string
	color string
}{
	stateInfo:     {"INFO", "\x1b[34m"},
	stateReady:    {"OK", "\x1b[32m"},
	stateDegraded: {"WARN", "\x1b[33m"},
	stateFailed:   {"FAIL", "\x1b[31m"},
}

const (
	ansiReset  = "\x1b[0m"
	labelWidth = 20
)

type statusRow struct {
	label  string
	state  checkState
	detail string
}

func (r statusRow) render(colorize bool) string {
	style := stateStyles[r.state]
	line := fmt.Sprintf("  %-*s [%s]", labelWidth, r.label+":", style.label)
	if r.detail != "" {
		line += " " + r.detail
	}
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

// dependencyRow maps a toolchain lookup; a missing optional tool only degrades.
func dependencyRow(status deps.Status) statusRow {
	switch {
	case status.Available:
		return statusRow{status.Name, stateReady, status.Command}
	case status.Optional:
		return statusRow{status.Name, stateDegraded, status.Detail + " (optional)"}
	default:
		return statusRow{status.Name, stateFailed, status.Detail}
	}
}

func checkRow(result preflight.Result) statusRow {
	if result.Passed {
		return statusRow{result.Name, stateReady, result.Detail}
	}
	return statusRow{result.Name, stateFailed, result.Detail}
}

// endpointRows summarizes which HTTP endpoints can succeed on this host.
func endpointRows(toolchainReady, llmReady bool) []statusRow {
	rows := make([]statusRow, 0, 2)
	if llmReady {
		rows = append(rows, statusRow{"/generate", stateReady, ""})
	} else {
		rows = append(rows, statusRow{"/generate", stateFailed, "provider not usable"})
	}
	if toolchainReady {
		rows = append(rows, statusRow{"/png", stateReady, ""})
	} else {
		rows = append(rows, statusRow{"/png", stateFailed, "LaTeX toolchain incomplete"})
	}
	return rows
}

func renderSection(title string, rows []statusRow, colorize bool) []string {
	header := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(header))
	if colorize {
		color := stateStyles[stateInfo].color
		header, rule = color+header+ansiReset, color+rule+ansiReset
	}
	lines := []string{header, rule}
	for _, row := range rows {
		lines = append(lines, row.render(colorize))
	}
	return lines
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
