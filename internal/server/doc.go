// Package server exposes MathTikZ over HTTP.
//
// # Routes
//
//	GET  /            browser front-end (embedded, or server.static_dir)
//	GET  /static/...  front-end assets
//	GET  /diagnostic  upstream probe summary; /test is an alias
//	GET  /healthz     toolchain and credential summary
//	POST /generate    {"prompt", "model"} -> {"code"}
//	POST /png         {"code"} -> image/png attachment
//
// Every failure is a JSON {"error": message} body whose status comes from
// services.HTTPStatus. Handlers keep no state between requests.
//
// # Middleware
//
// Requests pass through request-ID assignment, access logging (level by
// status class), panic recovery, CORS, and a body size limit, in that order.
package server
