package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/attribution"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

func submitCmd(withApp runner) *cobra.Command {
	var (
		title      string
		file       string
		namespaces []string
		tags       []string
		author     string
	)
	cmd := &cobra.Command{
		Use:   "submit [body]",
		Short: "Queue content for curation",
		Long: `Queues content as a pending item and runs automatic analysis. The body is
the argument, the contents of --file, or stdin when neither is given.

Examples:
  curationctl submit "Restart workers after config changes" -n ops
  curationctl submit --file runbook.md --title "Runbook" -n ops -n oncall`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			body, err := readBody(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			item, err := a.Store.Submit(cmd.Context(), curation.SubmitRequest{
				Title:       title,
				Body:        body,
				Namespaces:  namespaces,
				Tags:        tags,
				SubmittedBy: attribution.Or(author),
			})
			var dup *curation.DuplicateContentError
			if errors.As(err, &dup) {
				return fmt.Errorf("duplicate of %s (%q, similarity %.2f)", dup.MatchedID, dup.MatchedTitle, dup.Similarity)
			}
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Item title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the body from a file")
	cmd.Flags().StringSliceVarP(&namespaces, "namespace", "n", nil, "Namespace (repeatable, first is primary)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&author, "as", "", "Submitter name (default: current user)")
	return cmd
}

func readBody(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(raw), nil
	default:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(raw), nil
	}
}

func listCmd(use, short string, withApp runner) *cobra.Command {
	var (
		opts     storage.ListOptions
		statuses []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			for _, s := range statuses {
				st := types.CurationStatus(s)
				if !st.IsValid() {
					return fmt.Errorf("invalid status %q", s)
				}
				opts.Statuses = append(opts.Statuses, st)
			}

			list := a.Store.ListAll
			switch use {
			case "pending":
				list = a.Store.ListPending
			case "history":
				list = a.Store.ListHistory
			}
			page, err := list(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, page.Items)
			}
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No items")
				return nil
			}
			for i := range page.Items {
				printRow(out, &page.Items[i])
			}
			fmt.Fprintf(out, "\nPage %d, %d of %d item(s)\n", page.Page, len(page.Items), page.Total)
			return nil
		}),
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Items per page")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Sort field: submitted_at, status_changed_at, reviewed_at, quality_score")
	cmd.Flags().StringVar(&opts.SortOrder, "order", "", "Sort order: asc or desc")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "Only items suggesting this namespace")
	cmd.Flags().StringVar(&opts.SubmittedBy, "submitted-by", "", "Only items from this submitter")
	cmd.Flags().StringVar(&opts.ReviewedBy, "reviewed-by", "", "Only items decided by this reviewer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	if use == "list" {
		cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only these statuses")
	}
	return cmd
}

func showCmd(withApp runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := a.Store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func approveCmd(withApp runner) *cobra.Command {
	var reviewer, note string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve and publish a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			res, err := a.Store.Approve(cmd.Context(), args[0], attribution.Or(reviewer), note)
			if err != nil {
				return err
			}
			printApproval(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reviewer, "as", "", "Reviewer name (default: current user)")
	cmd.Flags().StringVarP(&note, "note", "m", "", "Decision note")
	return cmd
}

func rejectCmd(withApp runner) *cobra.Command {
	var reviewer, note string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := a.Store.Reject(cmd.Context(), args[0], attribution.Or(reviewer), note)
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reviewer, "as", "", "Reviewer name (default: current user)")
	cmd.Flags().StringVarP(&note, "note", "m", "", "Decision note")
	return cmd
}

func publishCmd(withApp runner) *cobra.Command {
	var reviewer string
	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish an approved item that has no published document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			res, err := a.Store.PublishApproved(cmd.Context(), args[0], attribution.Or(reviewer))
			if err != nil {
				return err
			}
			printApproval(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reviewer, "as", "", "Reviewer name (default: current user)")
	return cmd
}

func editCmd(withApp runner) *cobra.Command {
	var (
		title, file      string
		tags, namespaces []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a pending item",
		Long: `Edits a pending item. Only the flags given are changed. Changing the body
recomputes its fingerprint and clears the stored embedding.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			var u curation.Updates
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("file") {
				body, err := readBody(nil, file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				u.Body = &body
			}
			if flags.Changed("tag") {
				u.Tags = &tags
			}
			if flags.Changed("namespace") {
				u.Namespaces = &namespaces
			}
			item, err := a.Store.EditPending(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the new body from a file")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Replace the tags")
	cmd.Flags().StringSliceVarP(&namespaces, "namespace", "n", nil, "Replace the namespaces")
	return cmd
}

func analyzeCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run automatic analysis on a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			out, err := a.Store.RunAutoAnalysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.Analysis != nil {
				fmt.Fprintf(w, "Score:          %.0f (%s via %s)\n", out.Analysis.Score, out.Analysis.Recommendation, out.Analysis.Source)
			}
			fmt.Fprintf(w, "Decision:       %s (%s)\n", out.Decision.Action, out.Decision.Reason)
			if out.Executed != "" {
				fmt.Fprintf(w, "Executed:       %s\n", out.Executed)
			} else {
				fmt.Fprintln(w, "Executed:       none, left pending")
			}
			printItem(w, out.Item)
			return nil
		}),
	}
}

func printRow(w io.Writer, item *types.CurationItem) {
	score := "  -"
	if item.QualityScore != nil {
		score = fmt.Sprintf("%3.0f", *item.QualityScore)
	}
	fmt.Fprintf(w, "%s  %s  %s  %-20s  %s\n",
		item.ID, statusLabel(item.Status), score,
		strings.Join(item.SuggestedNamespaces, ","), displayTitle(item))
}

func printItem(w io.Writer, item *types.CurationItem) {
	fmt.Fprintf(w, "ID:             %s\n", item.ID)
	fmt.Fprintf(w, "Status:         %s\n", statusLabel(item.Status))
	fmt.Fprintf(w, "Title:          %s\n", displayTitle(item))
	if len(item.SuggestedNamespaces) > 0 {
		fmt.Fprintf(w, "Namespaces:     %s\n", strings.Join(item.SuggestedNamespaces, ", "))
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(w, "Tags:           %s\n", strings.Join(item.Tags, ", "))
	}
	if item.QualityScore != nil {
		fmt.Fprintf(w, "Quality score:  %.0f\n", *item.QualityScore)
	}
	if item.DecisionReason != "" {
		fmt.Fprintf(w, "Reason:         %s\n", item.DecisionReason)
	}
	fmt.Fprintf(w, "Submitted:      %s by %s\n", item.SubmittedAt.Format(time.RFC3339), item.SubmittedBy)
	if item.ReviewedAt != nil {
		fmt.Fprintf(w, "Reviewed:       %s by %s\n", item.ReviewedAt.Format(time.RFC3339), item.ReviewedBy)
	}
	if item.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:        %s\n", item.ExpiresAt.Format(time.RFC3339))
	}
	if item.PublishedDocumentID != "" {
		fmt.Fprintf(w, "Document:       %s\n", item.PublishedDocumentID)
	}
}

func printApproval(w io.Writer, res *curation.ApprovalResult) {
	printItem(w, res.Item)
	if res.AbsorbedFrom != "" {
		fmt.Fprintf(w, "Absorbed from:  %s (%.1f%% new content)\n", res.AbsorbedFrom, res.NewContentPercent)
	}
}

func statusLabel(s types.CurationStatus) string {
	switch s {
	case types.StatusApproved:
		return color.GreenString("%-8s", s)
	case types.StatusRejected:
		return color.RedString("%-8s", s)
	default:
		return color.YellowString("%-8s", s)
	}
}

func displayTitle(item *types.CurationItem) string {
	if item.Title != "" {
		return item.Title
	}
	body := strings.Join(strings.Fields(item.Body), " ")
	if r := []rune(body); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return body
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
