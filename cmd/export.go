package cmd

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/session"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write pending corrections to a dated JSON file",
	Long: `Write every pending correction to vita_corrections_YYYY-MM-DD.json and
clear them. An existing file of the same name is never overwritten; a
numeric suffix is added instead. Nothing is written when no corrections
are pending.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Directory to write into (default: export.dir)")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	if err := checkUnlocked(); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	dir := exportDir
	if dir == "" {
		dir = viper.GetString("export.dir")
	}

	if dryRun {
		n := sess.Stats().Corrected
		if n == 0 {
			ui.Warning("No corrections to export")
			return nil
		}
		ui.DryRunMsg("Would export %d corrections to %s", n, filepath.Join(dir, "vita_corrections_<date>.json"))
		return nil
	}

	res, err := sess.Export(ctx, export.NewFileSink(dir), exportDevice())
	if errors.Is(err, session.ErrNothingToExport) {
		ui.Warning("No corrections to export")
		return nil
	}
	if err != nil {
		return err
	}

	ui.Success("Exported %d corrections to %s", len(res.Document.Corrections), res.Location)
	ui.Info("Copy the file to the desktop machine and import it with the classifier.")
	return nil
}
