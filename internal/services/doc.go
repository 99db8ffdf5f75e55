// Package services defines shared utilities consumed by the generation and
// rendering pipelines and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, operation names, and
//     resolved model ids for logging.
//   - Structured error markers plus the Wrap helper that carry a caller-facing
//     message and translate failures into consistent HTTP status codes.
//
// Use these helpers when wiring new request paths so error responses and
// observability stay uniform across endpoints.
package services
