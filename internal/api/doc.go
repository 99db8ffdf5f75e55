// Package api defines the JSON wire types of the HTTP surface and the
// converters from internal results. The server and the CLI both encode these
// types so a response printed by "mathtikz generate --json" matches the body
// of POST /generate.
//
// # Key Types
//
// GenerateRequest/GenerateResponse: POST /generate body and reply.
//
// RenderRequest: POST /png body; the reply is raw image/png.
//
// ErrorResponse: {"error": message} returned by every failing endpoint.
//
// DiagnosticResponse: GET /diagnostic (and /test) upstream probe summary.
//
// HealthResponse: GET /healthz toolchain and credential summary.
//
// # Design Notes
//
// JSON field names are lowercase single words to match the browser front-end
// ("prompt", "model", "code", "error"). Unknown request fields are ignored.
package api
