package main

import (
	"fmt"
	"log/slog"

	"aquasim-server/internal/shared/config"
	"aquasim-server/internal/telemetry"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "reset <truchas|lechugas>",
		Short:     "Delete every stored measurement of one organism",
		Long:      "Deletes the organism's history so it restarts from genesis. Against a running server use POST /api/<kind>/reset instead, which also resets the live generator.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{telemetry.KindTrucha.String(), telemetry.KindLechuga.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := telemetry.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown organism %q, expected truchas or lechugas", args[0])
			}

			db, repo, err := openStore(config.GlobalConfig)
			if err != nil {
				return err
			}
			defer db.Close()

			deleted, err := repo.DeleteAll(cmd.Context(), kind)
			if err != nil {
				return err
			}

			slog.Info("Organism history deleted", "organism", kind, "deleted", deleted)
			fmt.Printf("Deleted %d %s records\n", deleted, kind)
			return nil
		},
	}
}
