// Command mathtikz runs the MathTikZ HTTP backend and offers local helpers
// for generating LaTeX from a prompt, rendering LaTeX to PNG, inspecting the
// model catalog, and checking the host toolchain.
//
// Every subcommand except "config init" loads configuration first, from
// --config or ~/.config/mathtikz/config.toml, with environment overrides.
package main
