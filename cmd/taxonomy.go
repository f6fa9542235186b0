package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nyfy17/VitaMobile/internal/models"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories accepted by 'vita correct'",
	Run: func(cmd *cobra.Command, args []string) {
		categoriesRun()
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects accepted by 'vita correct'",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectsRun()
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd, projectsCmd)
}

func categoriesRun() {
	for _, c := range models.Categories {
		fmt.Fprintln(ui.Out, c)
	}
}

func projectsRun() error {
	sess, err := getSession(context.Background())
	if err != nil {
		return err
	}
	for _, p := range models.ProjectChoices(sess.Projects()) {
		fmt.Fprintln(ui.Out, p)
	}
	return nil
}
