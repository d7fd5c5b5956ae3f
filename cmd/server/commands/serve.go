package commands

import (
	"github.com/spf13/cobra"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution server",
	Long: `Start the HTTP server that accepts chat connections on /ws/chat, plans prompts with the configured planner, classifies the generated commands and runs approved ones over SSH.

The server stops gracefully on SIGINT/SIGTERM: connected clients are closed, running executions are cancelled and SSH sessions are disconnected.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return commandsService.Serve(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}
