package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/output"
	"github.com/nyfy17/VitaMobile/internal/session"
)

var queueLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show review progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List emails not yet reviewed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return queueRun()
	},
}

func init() {
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Maximum emails to list (0 for all)")
	rootCmd.AddCommand(statusCmd, queueCmd)
}

func statusRun() error {
	sess, err := getSession(context.Background())
	if err != nil {
		return err
	}
	st := sess.Stats()
	state := sess.State()

	fmt.Fprintf(ui.Out, "  %-12s %s\n", "State", output.StateColor(state.String()))
	fmt.Fprintf(ui.Out, "  %-12s %d of %d\n", "Reviewed", st.Position, st.Total)
	fmt.Fprintf(ui.Out, "  %-12s %d\n", "Remaining", st.Remaining)
	fmt.Fprintf(ui.Out, "  %-12s %d\n", "Pending", st.Corrected)
	if pid := reviewLock().Holder(); pid != 0 {
		fmt.Fprintf(ui.Out, "  %-12s %s\n", "In use", output.Yellow(fmt.Sprintf("pid %d", pid)))
	}
	ui.VerboseLog("state dir: %s", viper.GetString("state_dir"))

	switch {
	case state == session.StateIdle:
		fmt.Fprintln(ui.Out)
		ui.Info("No snapshot loaded. Use 'vita load <file>' to get started.")
	case st.Remaining == 0 && st.Corrected > 0:
		fmt.Fprintln(ui.Out)
		ui.Info("Review complete. Run 'vita export' to deliver %d corrections.", st.Corrected)
	}
	return nil
}

func queueRun() error {
	sess, err := getSession(context.Background())
	if err != nil {
		return err
	}

	pending := sess.Pending()
	if len(pending) == 0 {
		ui.Info("Nothing left to review.")
		return nil
	}
	total := len(pending)
	if queueLimit > 0 && len(pending) > queueLimit {
		pending = pending[:queueLimit]
	}

	low, high := confidenceBands()
	start := sess.Stats().Position
	table := ui.Table([]string{"#", "ID", "Subject", "From", "Category", "Conf", "Project", "Conf"})
	for i, r := range pending {
		table.Append([]string{
			strconv.Itoa(start + i + 1),
			r.ID.String(),
			truncate(r.Subject, 40),
			truncate(r.SenderDisplay(), 24),
			orDefault(r.AICategory, "-"),
			output.ConfidenceColor(models.ConfidencePercent(r.CategoryConfidence), low, high),
			orDefault(r.OriginalProject(), "-"),
			output.ConfidenceColor(models.ConfidencePercent(r.ProjectConfidence), low, high),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(pending) < total {
		ui.Info("%d more not shown (use --limit 0 for all)", total-len(pending))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
