package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/config"
	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/runner"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var profile string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run one benchmark session sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if profile != "" {
				cfg.Run.Profile = profile
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			r, err := runner.New(*cfg, tele)
			if err != nil {
				return err
			}
			return r.Run(ctx)
		},
	}
	run.Flags().StringVar(&profile, "profile", "", "benchmark profile override (assistant, storefront)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
