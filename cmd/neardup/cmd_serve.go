package main

import (
	"fmt"

	"github.com/nvandessel/neardup/internal/mcp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

All tool calls share one deduplicator, so texts checked by one call are
remembered by the next until neardup_reset is called. Logs go to stderr;
tool calls are audited to audit.jsonl in the log directory.

Tools: neardup_vectorize, neardup_check, neardup_filter, neardup_compare,
neardup_stats, neardup_reset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     cfg.Server.Name,
				Version:  version,
				Settings: cfg,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}

	addTuningFlags(cmd)

	return cmd
}
