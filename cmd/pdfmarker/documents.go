package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDocumentsCmd(opts *cliOptions, sess func() *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Browse documents",
	}

	list := needsSession(&cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := sess().docs.FetchDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", d.ID, d.Status, d.Filename, d.Title)
			}
			return nil
		},
	})

	get := needsSession(&cobra.Command{
		Use:   "get <documentId>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := sess().docs.FetchDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:       %s\n", d.ID)
			fmt.Fprintf(out, "title:    %s\n", d.Title)
			fmt.Fprintf(out, "filename: %s\n", d.Filename)
			fmt.Fprintf(out, "status:   %s\n", d.Status)
			fmt.Fprintf(out, "updated:  %s\n", d.UpdatedAt.Format("2006-01-02 15:04"))
			return nil
		},
	})

	cmd.AddCommand(list, get)
	return cmd
}
