package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nyfy17/VitaMobile/internal/session"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Unload the current snapshot",
	Long: `Unload the current snapshot and forget the review position.

Pending corrections are kept until exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetRun()
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func resetRun() error {
	if err := checkUnlocked(); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	if sess.State() == session.StateIdle {
		ui.Info("No snapshot loaded")
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would unload %d emails", sess.Stats().Total)
		return nil
	}

	sess.Reset(ctx)
	ui.Success("Snapshot unloaded")
	if n := sess.Stats().Corrected; n > 0 {
		ui.Info("%d corrections are still pending export", n)
	}
	return nil
}
