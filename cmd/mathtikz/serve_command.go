package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mathtikz/internal/generation"
	"mathtikz/internal/latex"
	"mathtikz/internal/logging"
	"mathtikz/internal/preflight"
	"mathtikz/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, skipPreflight)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without probing the toolchain and provider")
	return cmd
}

func runServer(cmdCtx context.Context, ctx *commandContext, skipPreflight bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	gen, err := generation.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	pipeline := latex.NewFromConfig(cfg, logger)

	if !skipPreflight {
		for _, result := range preflight.RunAll(signalCtx, cfg, gen.Client()) {
			if result.Passed {
				logger.Debug("preflight check passed",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
				)
				continue
			}
			logging.WarnWithContext(logger, "preflight check failed", "preflight",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "affected endpoint will return errors"),
				logging.String(logging.FieldErrorHint, "run `mathtikz status` for details"),
			)
		}
	}

	srv, err := server.New(cfg, gen, pipeline,
		server.WithLogger(logger),
		server.WithProber(gen.Client()),
	)
	if err != nil {
		return err
	}

	logger.Info("mathtikz starting",
		logging.String("address", cfg.ListenAddress()),
		logging.String("provider", gen.Client().Provider().Name()),
		logging.String("default_model", gen.Catalog().Default()),
		logging.Bool("llm_configured", cfg.HasAPIKey()),
		logging.String("config_path", ctx.configPath),
	)
	return srv.Run(signalCtx)
}
