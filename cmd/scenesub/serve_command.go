package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenesub/internal/deps"
	"scenesub/internal/jobs"
	"scenesub/internal/logging"
	"scenesub/internal/preflight"
	"scenesub/internal/server"
	"scenesub/internal/subtitles"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if b := strings.TrimSpace(bind); b != "" {
				clone := *cfg
				clone.Server.Bind = b
				cfg = &clone
			}

			logger, err := ctx.serviceLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				for _, result := range failed {
					logger.Error("preflight check failed",
						logging.String("check", result.Name),
						logging.String("detail", result.Detail),
					)
				}
				return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
			}

			for _, dep := range deps.MissingRequired(preflight.CheckSystemDeps(cfg)) {
				logging.WarnWithContext(logger, "required binary missing; uploads will fail", "dependency_missing",
					logging.String("dependency", dep.Name),
					logging.String("detail", dep.Detail),
					logging.String(logging.FieldErrorHint, "install it or set the path under [tools]"),
					logging.String(logging.FieldImpact, "subtitle generation unavailable"),
				)
			}

			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			pipeline := subtitles.NewService(cfg, logger)
			srv := server.New(cfg, store, pipeline, logger)
			logger.Info("scenesub serve starting",
				logging.String("config", ctx.configPath),
				logging.String("database", store.Path()),
				logging.String("model", pipeline.Model()),
			)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")
	return cmd
}
