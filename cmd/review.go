package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [snapshot.db]",
	Short: "Review emails interactively",
	Long: `Open the interactive review screen.

With a snapshot argument the snapshot is loaded first (same rules as
'vita load'). Keys: a approve, c correct, s skip, t toggle the message
body, e export, q quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if err := loadRun(args[0]); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
		}
		return reviewRun()
	},
}

func init() {
	reviewCmd.Flags().BoolVarP(&loadForce, "force", "f", false, "Replace a review in progress when loading")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun() error {
	release, err := acquireLock()
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	low, high := confidenceBands()
	return tui.Run(ctx, sess, tui.Options{
		Sink:           export.NewFileSink(viper.GetString("export.dir")),
		Device:         exportDevice(),
		LowConfidence:  low,
		HighConfidence: high,
		Logger:         getLogger(),
	})
}
