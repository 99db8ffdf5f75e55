package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mathtikz/internal/api"
	"mathtikz/internal/generation"
	"mathtikz/internal/services"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var model string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate LaTeX for a prompt (reads stdin when no prompt is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			prompt, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}

			gen, err := generation.NewFromConfig(cfg, cliLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			result, err := gen.Generate(cmd.Context(), generation.Request{Prompt: prompt, ModelKey: model})
			if err != nil {
				return cliError(err)
			}

			if jsonOutput {
				return writeJSON(cmd, api.GenerateResponse{Code: result.Code})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id or alias (defaults to the catalog default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response body the HTTP endpoint would return")
	return cmd
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// cliError reports the user-facing message while keeping err in the chain.
func cliError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := strings.TrimSpace(services.PublicMessage(err))
	if msg == "" {
		return err
	}
	return &publicError{msg: msg, err: err}
}

type publicError struct {
	msg string
	err error
}

func (e *publicError) Error() string { return e.msg }

func (e *publicError) Unwrap() error { return e.err }
