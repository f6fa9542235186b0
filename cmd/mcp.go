package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nyfy17/VitaMobile/internal/export"
	vitamcp "github.com/nyfy17/VitaMobile/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent drive the review: read the current email, approve,
correct, skip and export. Configure it in the agent's MCP settings with:

  {
    "mcpServers": {
      "vita": { "command": "vita", "args": ["mcp"] }
    }
  }

Available tools: vita_load, vita_current, vita_stats, vita_queue,
vita_approve, vita_correct, vita_skip, vita_export, vita_categories,
vita_projects`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
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

	log := getLogger()
	srv := vitamcp.NewServer(sess, export.NewFileSink(viper.GetString("export.dir")), exportDevice(), log)
	log.Info("mcp server starting", zap.Int("queue", sess.Stats().Total))

	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
