package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/spf13/cobra"
)

func newCommentsCmd(opts *cliOptions, sess func() *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Manage comments and markers on a document",
	}

	var (
		page       int
		unresolved bool
	)
	list := needsSession(&cobra.Command{
		Use:   "list <documentId>",
		Short: "List comments, optionally for one page or only unresolved ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byPage := cmd.Flags().Changed("page")
			if byPage && page < 1 {
				return &annotation.ValidationError{Field: "page", Reason: "must be 1 or greater"}
			}
			s := sess()
			docID := args[0]
			if _, err := s.store.Fetch(cmd.Context(), docID); err != nil {
				return err
			}
			var out []annotation.Comment
			switch {
			case byPage:
				out = s.store.GetByPage(docID, page)
				if unresolved {
					out = onlyUnresolved(out)
				}
			case unresolved:
				out = s.store.GetUnresolved(docID)
			default:
				out = s.store.GetByDocument(docID)
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printComments(cmd.OutOrStdout(), out)
			return nil
		},
	})
	list.Flags().IntVar(&page, "page", 0, "only comments anchored to this page")
	list.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved comments")

	var (
		markPage int
		x, y     float64
	)
	add := needsSession(&cobra.Command{
		Use:   "add <documentId> <text>",
		Short: "Add a comment; --page anchors it to a position on that page",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var marker *annotation.MarkerRequest
			if cmd.Flags().Changed("page") {
				marker = &annotation.MarkerRequest{PageNumber: markPage, Position: annotation.Position{X: x, Y: y}}
			}
			id, err := sess().store.AddComment(cmd.Context(), args[0], strings.Join(args[1:], " "), marker)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})
	add.Flags().IntVar(&markPage, "page", 0, "page number (1-based)")
	add.Flags().Float64Var(&x, "x", 0, "marker x position")
	add.Flags().Float64Var(&y, "y", 0, "marker y position")

	resolve := needsSession(&cobra.Command{
		Use:   "resolve <documentId> <commentId>",
		Short: "Mark a comment resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sess().store.ResolveComment(cmd.Context(), annotation.Comment{ID: args[1], DocumentID: args[0]})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s resolved\n", c.ID)
			return nil
		},
	})

	cmd.AddCommand(list, add, resolve)
	return cmd
}

func onlyUnresolved(cs []annotation.Comment) []annotation.Comment {
	out := cs[:0]
	for _, c := range cs {
		if !c.IsResolved {
			out = append(out, c)
		}
	}
	return out
}

func printComments(w io.Writer, cs []annotation.Comment) {
	for _, c := range cs {
		where := "doc"
		if c.HasMarker() {
			where = fmt.Sprintf("p%d@%g,%g", c.Marker.PageNumber, c.Marker.Position.X, c.Marker.Position.Y)
		}
		state := "open"
		if c.IsResolved {
			state = "resolved"
		}
		author := c.Author.Name
		if author == "" {
			author = c.Author.ID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, where, state, author, c.Comment)
	}
}
