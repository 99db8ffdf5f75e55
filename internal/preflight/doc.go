// Package preflight provides readiness checks for the upstream provider,
// the TeX toolchain, and the filesystem paths MathTikZ depends on.
//
// These checks run in two contexts:
//   - "mathtikz serve" calls RunAll once at startup and logs every failure
//     without refusing to start; a missing key or compiler only affects the
//     endpoints that need it.
//   - The CLI "mathtikz status" command renders the same results as a table.
//
// The LLM check is skipped when no API key is configured.
package preflight
