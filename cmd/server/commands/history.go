package commands

import (
	"shellpilot/internal/history"

	"github.com/spf13/cobra"
)

var historyServer = ""
var historyLimit = history.DefaultListLimit
var historyVerbose = false

var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past executions",
	Long:  `Show finished executions, newest first. Use --verbose to print every command with its exit code and the final summary.`,
	Run: func(cmd *cobra.Command, _ []string) {
		commandsService.History(cmd.Context(), historyServer, historyLimit, historyVerbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	HistoryCmd.Flags().StringVarP(&historyServer, "server", "s", "", "Only show executions of this server (name or id)")
	HistoryCmd.Flags().IntVarP(&historyLimit, "limit", "l", history.DefaultListLimit, "Maximum number of executions to show")
	HistoryCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "Print commands and results of every execution")
}
