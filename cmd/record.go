package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/output"
	"github.com/nyfy17/VitaMobile/internal/session"
)

var (
	showBody bool

	correctCategory       string
	correctCategoryReason string
	correctProject        string
	correctProjectReason  string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the email under review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun()
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Accept the AI category and project and move on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return approveRun()
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record a corrected category and/or project and move on",
	Long: `Record corrections for the email under review.

Omit --category or --project to keep the AI label. With neither set the
email counts as approved. See 'vita categories' and 'vita projects' for
accepted values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return correctRun()
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Move on without recording anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		return skipRun()
	},
}

func init() {
	showCmd.Flags().BoolVarP(&showBody, "body", "b", false, "Include the full message")

	correctCmd.Flags().StringVar(&correctCategory, "category", "", "Corrected category")
	correctCmd.Flags().StringVar(&correctCategoryReason, "category-reason", "", "Why the category is wrong")
	correctCmd.Flags().StringVar(&correctProject, "project", "", "Corrected project")
	correctCmd.Flags().StringVar(&correctProjectReason, "project-reason", "", "Why the project is wrong")

	rootCmd.AddCommand(showCmd, approveCmd, correctCmd, skipCmd)
}

func showRun() error {
	sess, err := getSession(context.Background())
	if err != nil {
		return err
	}
	rec, err := currentRecord(sess)
	if err != nil {
		return err
	}
	printRecord(sess, rec, showBody)
	return nil
}

func approveRun() error {
	return act("approve", func(ctx context.Context, sess *session.Session, rec models.ReviewRecord) error {
		if dryRun {
			ui.DryRunMsg("Would approve #%s: %s", rec.ID, rec.Subject)
			return nil
		}
		if err := sess.Approve(ctx); err != nil {
			return err
		}
		ui.Success("Approved #%s: %s", rec.ID, rec.Subject)
		return nil
	})
}

func correctRun() error {
	in := session.CorrectInput{
		Category:       strings.TrimSpace(correctCategory),
		CategoryReason: correctCategoryReason,
		Project:        strings.TrimSpace(correctProject),
		ProjectReason:  correctProjectReason,
	}
	if in.Category != "" && !models.IsCategory(in.Category) {
		return fmt.Errorf("unknown category %q (see 'vita categories')", in.Category)
	}

	return act("correct", func(ctx context.Context, sess *session.Session, rec models.ReviewRecord) error {
		if in.Project != "" && !slices.Contains(models.ProjectChoices(sess.Projects()), in.Project) {
			return fmt.Errorf("unknown project %q (see 'vita projects')", in.Project)
		}
		if dryRun {
			ui.DryRunMsg("Would correct #%s: %s", rec.ID, describeCorrection(rec, in))
			return nil
		}
		if err := sess.Correct(ctx, in); err != nil {
			return err
		}
		ui.Success("Corrected #%s: %s", rec.ID, describeCorrection(rec, in))
		return nil
	})
}

func skipRun() error {
	return act("skip", func(ctx context.Context, sess *session.Session, rec models.ReviewRecord) error {
		if dryRun {
			ui.DryRunMsg("Would skip #%s: %s", rec.ID, rec.Subject)
			return nil
		}
		if err := sess.Skip(ctx); err != nil {
			return err
		}
		ui.Info("Skipped #%s: %s", rec.ID, rec.Subject)
		return nil
	})
}

// act runs a one-shot review action against the current record, then
// reports what comes next.
func act(name string, fn func(context.Context, *session.Session, models.ReviewRecord) error) error {
	if err := checkUnlocked(); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}
	rec, err := currentRecord(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := fn(ctx, sess, rec); err != nil {
		return err
	}
	if dryRun {
		return nil
	}

	st := sess.Stats()
	if sess.State() == session.StateComplete {
		ui.Success("Review complete: %d emails, %d corrections pending. Run 'vita export'.", st.Total, st.Corrected)
		return nil
	}
	ui.Info("Next: email %d of %d ('vita show')", st.Position+1, st.Total)
	return nil
}

func describeCorrection(rec models.ReviewRecord, in session.CorrectInput) string {
	var parts []string
	if in.Category != "" {
		parts = append(parts, fmt.Sprintf("category %s -> %s", orDefault(rec.AICategory, "none"), in.Category))
	}
	if in.Project != "" {
		parts = append(parts, fmt.Sprintf("project %s -> %s", orDefault(rec.OriginalProject(), "none"), in.Project))
	}
	if len(parts) == 0 {
		return "no changes, recorded as approved"
	}
	return strings.Join(parts, ", ")
}

func printRecord(sess *session.Session, rec models.ReviewRecord, withBody bool) {
	st := sess.Stats()
	low, high := confidenceBands()

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(fmt.Sprintf("Email %d of %d", st.Position+1, st.Total)), fmt.Sprintf("#%s", rec.ID))
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "  Subject:   %s\n", rec.Subject)
	fmt.Fprintf(ui.Out, "  From:      %s\n", rec.SenderDisplay())
	fmt.Fprintf(ui.Out, "  Date:      %s\n", orDefault(rec.DateString(), "unknown"))
	if rec.OnelineSummary != "" {
		fmt.Fprintf(ui.Out, "  Summary:   %s\n", rec.OnelineSummary)
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "  Category:  %s  %s\n", orDefault(rec.AICategory, "Not analyzed"),
		output.ConfidenceColor(models.ConfidencePercent(rec.CategoryConfidence), low, high))
	if rec.CategoryReasoning != "" {
		fmt.Fprintf(ui.Out, "             %s\n", rec.CategoryReasoning)
	}
	fmt.Fprintf(ui.Out, "  Project:   %s  %s\n", orDefault(rec.OriginalProject(), "None"),
		output.ConfidenceColor(models.ConfidencePercent(rec.ProjectConfidence), low, high))
	if rec.ProjectClues != "" {
		fmt.Fprintf(ui.Out, "             %s\n", rec.ProjectClues)
	}

	if withBody {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, orDefault(rec.Content(), "No email content"))
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
