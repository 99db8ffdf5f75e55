package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mathtikz/internal/config"
	"mathtikz/internal/deps"
	"mathtikz/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration, the LaTeX toolchain, and the LLM provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			configRows := []statusRow{
				{"Config file", stateInfo, ctx.configPath},
				{"Listen address", stateInfo, cfg.ListenAddress()},
				{"Provider", stateInfo, cfg.LLM.Provider},
				{"Default model", stateInfo, cfg.Models.Default},
				apiKeyRow(cfg),
				checkRow(preflight.CheckDirectoryAccess("Work directory", preflight.WorkDir(cfg))),
			}

			binaries := preflight.CheckSystemDeps(cfg)
			var toolchainRows []statusRow
			for _, status := range binaries {
				toolchainRows = append(toolchainRows, dependencyRow(status))
			}
			for _, status := range preflight.CheckTeXPackages(cmd.Context()) {
				toolchainRows = append(toolchainRows, dependencyRow(status))
			}

			llmRow, llmReady := providerRow(cmd, cfg, offline)

			var lines []string
			lines = append(lines, renderSection("Configuration", configRows, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSection("Toolchain", toolchainRows, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSection("Provider", []statusRow{llmRow}, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSection("Endpoints", endpointRows(deps.RequiredAvailable(binaries), llmReady), colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the provider probe")
	return cmd
}

func apiKeyRow(cfg *config.Config) statusRow {
	if cfg.HasAPIKey() {
		return statusRow{"API key", stateReady, "configured"}
	}
	return statusRow{"API key", stateDegraded, "missing; /generate will fail"}
}

// providerRow probes the provider unless there is no key or the caller asked
// to stay offline; an offline check counts as ready when a key is present.
func providerRow(cmd *cobra.Command, cfg *config.Config, offline bool) (statusRow, bool) {
	switch {
	case !cfg.HasAPIKey():
		return statusRow{"LLM provider", stateDegraded, "skipped (no API key)"}, false
	case offline:
		return statusRow{"LLM provider", stateInfo, "skipped (--offline)"}, true
	}
	result := preflight.CheckLLM(cmd.Context(), "LLM provider", preflight.ClientFromConfig(cfg))
	return checkRow(result), result.Passed
}
