package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/credentials"
	"github.com/spf13/cobra"
)

type identity struct {
	AuthMode      string           `json:"authMode"`
	Authenticated bool             `json:"authenticated"`
	User          *annotation.User `json:"user,omitempty"`
	Permissions   []string         `json:"permissions,omitempty"`
}

// newWhoamiCmd shows the author new comments are created as. Permissions come from the
// token's claims and are only known in token mode.
func newWhoamiCmd(opts *cliOptions, sess func() *session) *cobra.Command {
	return needsSession(&cobra.Command{
		Use:   "whoami",
		Short: "Show the identity and permissions comments are created with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sess()
			id := identity{AuthMode: s.mode}
			switch c := s.creds.(type) {
			case *credentials.JWTStore:
				id.Authenticated = c.IsAuthenticated()
				id.Permissions = c.Permissions()
			case credentials.None:
			default:
				id.Authenticated = true
			}
			u, err := s.users.CurrentUser(cmd.Context())
			switch {
			case errors.Is(err, credentials.ErrNoUser):
			case err != nil:
				return err
			default:
				id.User = &u
			}

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), id)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "auth:        %s\n", id.AuthMode)
			fmt.Fprintf(out, "signed in:   %t\n", id.Authenticated)
			if id.User == nil {
				fmt.Fprintln(out, "user:        (anonymous)")
			} else {
				fmt.Fprintf(out, "user:        %s %s\n", id.User.ID, id.User.Name)
			}
			if len(id.Permissions) > 0 {
				fmt.Fprintf(out, "permissions: %s\n", strings.Join(id.Permissions, ", "))
			}
			return nil
		},
	})
}
