// Package latex compiles LaTeX source into a PNG image of its first page.
//
// Pipeline.Compile creates a private working directory under the configured
// work dir, writes main.tex, runs the compiler (pdflatex by default) in
// non-interactive mode with shell escape disabled, rasterizes page one with
// the rasterizer (pdftoppm by default), and removes the directory before
// returning. External processes run through the Executor interface so tests
// can substitute fakes; the default executor runs each command in its own
// process group and kills the whole group when the deadline passes.
package latex
