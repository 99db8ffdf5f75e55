// Package logging assembles structured slog loggers and formatting helpers used
// across MathTikZ.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request code can tag log lines
// with correlation IDs, operation names, and resolved models. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
