// Package generation turns a natural-language figure description into LaTeX
// source.
//
// Generator.Generate validates the prompt, resolves the caller's model key
// through the catalog, sends the request through the bounded retry policy,
// and returns the sanitized generated text. Failures carry the markers from
// internal/services so the HTTP layer can map them to status codes without
// inspecting messages.
package generation
