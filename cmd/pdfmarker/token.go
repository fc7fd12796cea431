package main

import (
	"fmt"
	"time"

	"github.com/pdfmarker/pdfmarker/internal/config"
	"github.com/pdfmarker/pdfmarker/internal/models"
	"github.com/pdfmarker/pdfmarker/internal/tokens"
	"github.com/spf13/cobra"
)

// newTokenCmd mints a development token signed with JWT_SECRET, accepted by a server
// configured with the same secret.
func newTokenCmd() *cobra.Command {
	u := &models.User{}
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token (HS256, JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			tok, err := tokens.GenerateAccessToken(cfg, u, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Sub, "sub", "dev-user", "subject (author id)")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email")
	cmd.Flags().StringVar(&u.Role, "role", "", "role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
