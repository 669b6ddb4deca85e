package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/shared/logger"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "aquasim",
		Short: "Aquaponics telemetry simulator",
		Long: `aquasim simulates a trout tank and a lettuce bed, persists one
measurement per organism every tick and streams them to dashboards.

Configuration is read from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			logger.Init()
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newResetCmd(),
		newTokenCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
