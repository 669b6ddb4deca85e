package main

import (
	"fmt"

	"aquasim-server/internal/auth"
	"aquasim-server/internal/shared/config"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the reset endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GlobalConfig
			operator, _ := cmd.Flags().GetString("operator")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.Auth.TokenExpiration
			}

			token, err := auth.GenerateToken(cfg.Auth.JWTSecret, operator, ttl)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().String("operator", "operator", "Name recorded in the token and in audit logs")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default JWT_EXPIRATION_HOURS)")
	return cmd
}
