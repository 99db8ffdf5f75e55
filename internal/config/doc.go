// Package config loads, normalizes, and validates MathTikZ configuration.
//
// Values come from three layers: repository defaults, an optional TOML file
// (`--config`, ~/.config/mathtikz/config.toml, or ./mathtikz.toml), and
// environment variables, including any declared in a local .env file. The
// upstream API key is optional at load time so the server can start and serve
// rendering requests without one.
package config
