package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/attribution"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/importer"
)

func importCmd(withApp runner) *cobra.Command {
	var opts importer.Options
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Submit every markdown note under a directory",
		Long: `Walks a directory of markdown notes and submits each one. Frontmatter
title, tags, namespaces and author are honoured; otherwise the top-level folder
names the namespace. Duplicates of existing content are counted, not failed.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			opts.SubmittedBy = attribution.Or(opts.SubmittedBy)
			res, err := importer.New(a.Store, a.Logger).ImportDir(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Found %d note(s) in %v\n", res.Found, res.Duration)
			fmt.Fprintf(w, "  queued:     %d\n", res.Queued)
			fmt.Fprintf(w, "  duplicates: %d\n", res.Duplicates)
			fmt.Fprintf(w, "  skipped:    %d\n", res.Skipped)
			fmt.Fprintf(w, "  failed:     %d\n", res.Failed)
			for _, e := range res.Errors {
				fmt.Fprintf(w, "    %s\n", e)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d note(s) failed to import", res.Failed)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&opts.DefaultNamespace, "namespace", "n", "", "Namespace for notes outside a folder")
	cmd.Flags().StringVar(&opts.SubmittedBy, "as", "", "Submitter when a note names no author (default: current user)")
	cmd.Flags().StringSliceVar(&opts.ExtraTags, "tag", nil, "Tag added to every note (repeatable)")
	return cmd
}
