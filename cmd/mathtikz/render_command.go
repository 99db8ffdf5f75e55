package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mathtikz/internal/latex"
)

const defaultPNGName = "imagem-matematica.png"

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "render [file.tex]",
		Short: "Compile LaTeX and write the first page as PNG (reads stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var source string
			if len(args) > 0 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				source = string(data)
			} else {
				source, err = argOrStdin(cmd, nil)
				if err != nil {
					return err
				}
			}

			pipeline := latex.NewFromConfig(cfg, cliLogger(cfg, cmd.ErrOrStderr()))
			png, err := pipeline.Compile(cmd.Context(), strings.TrimSpace(source))
			if err != nil {
				return cliError(err)
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = defaultPNGName
			}
			if dir := filepath.Dir(target); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory %q: %w", dir, err)
				}
			}
			if err := os.WriteFile(target, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, len(png))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination PNG (default "+defaultPNGName+")")
	return cmd
}
