package main

import (
	"fmt"
	"log/slog"

	"aquasim-server/internal/seed"
	"aquasim-server/internal/shared/config"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Backfill historical measurements into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GlobalConfig
			if days, _ := cmd.Flags().GetInt("days"); days > 0 {
				cfg.Seed.Days = days
			}

			db, repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := seed.New(repo, seedConfig(cfg), slog.Default()).Run(cmd.Context())
			if err != nil {
				return err
			}

			if result.Skipped {
				fmt.Println("Database already holds measurements, nothing to seed")
				return nil
			}
			fmt.Printf("Seeded %d trucha and %d lechuga records in %s\n", result.Truchas, result.Lechugas, result.Duration)
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "Days of history to generate (default SEED_DAYS)")
	return cmd
}
