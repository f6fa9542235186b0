package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nyfy17/VitaMobile/internal/session"
	"github.com/nyfy17/VitaMobile/internal/snapshot"
)

var loadForce bool

var loadCmd = &cobra.Command{
	Use:   "load <snapshot.db>",
	Short: "Load a review snapshot exported by the desktop classifier",
	Long: `Load a SQLite snapshot and start reviewing from its first email.

Emails are ordered by category confidence, then project confidence, lowest
first. The snapshot is kept so the review resumes where it left off.
Corrections from earlier snapshots stay pending until exported.

A review in progress is never replaced silently; pass --force to abandon it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return loadRun(args[0])
	},
}

func init() {
	loadCmd.Flags().BoolVarP(&loadForce, "force", "f", false, "Replace a review in progress")
	rootCmd.AddCommand(loadCmd)
}

func loadRun(path string) error {
	if err := checkUnlocked(); err != nil {
		return err
	}
	ctx := context.Background()

	snap, err := snapshot.ParseFile(ctx, path)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoRecords) {
			return fmt.Errorf("%s has no emails to review: %w", path, err)
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	reviewing := sess.State() == session.StateReviewing
	if reviewing && !loadForce {
		st := sess.Stats()
		return fmt.Errorf("a review is in progress (email %d of %d); use --force to replace it", st.Position+1, st.Total)
	}

	if dryRun {
		ui.DryRunMsg("Would load %d emails and %d projects from %s", len(snap.Records), len(snap.Projects), path)
		return nil
	}

	if reviewing {
		ui.Warning("Abandoning review at email %d of %d", sess.Stats().Position+1, sess.Stats().Total)
		sess.Reset(ctx)
	}
	if err := sess.Load(ctx, snap); err != nil {
		return err
	}

	ui.Success("Loaded %d emails from %s", len(snap.Records), path)
	ui.VerboseLog("%d projects: %v", len(snap.Projects), snap.Projects)
	if n := sess.Stats().Corrected; n > 0 {
		ui.Info("%d corrections from earlier reviews are pending export", n)
	}
	return nil
}
