package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mathtikz/internal/api"
	"mathtikz/internal/catalog"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the server accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cat, err := catalog.FromConfig(cfg)
			if err != nil {
				return err
			}
			models := api.FromCatalog(cat)
			if jsonOutput {
				return writeJSON(cmd, models)
			}

			rows := make([][]string, 0, len(models))
			for _, m := range models {
				rows = append(rows, []string{m.ID, strings.Join(m.Aliases, ", "), yesNo(m.Default)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Model", "Aliases", "Default"}, rows, nil))
			fmt.Fprintf(out, "Provider: %s  Strict: %s\n", cfg.LLM.Provider, yesNo(cat.Strict()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
