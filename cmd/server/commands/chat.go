package commands

import (
	"strings"

	"shellpilot/cmd/server/config"
	"shellpilot/internal/commands"

	"github.com/spf13/cobra"
)

var chatOptions = commands.ChatOptions{}

var ChatCmd = &cobra.Command{
	Use:   "chat --server <name|id> <prompt>",
	Short: "Ask the server to plan and run commands on a remote host",
	Long: `Send a natural-language prompt to a running shellpilot server and follow the execution: the plan, the generated commands with their risk level, the streamed output and the final analysis.

When the commands require confirmation you are asked before anything runs. Press Ctrl+C to cancel a running execution.`,
	Example: `  shellpilot chat --server web-1 "show disk usage of /var"
  shellpilot chat --server web-1 --dry-run "restart nginx"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		opts := chatOptions
		opts.Prompt = strings.Join(args, " ")

		if opts.URL == "" {
			opts.URL = config.Config.ServerURL
		}

		if opts.Token == "" {
			opts.Token = config.Config.ChatToken
		}

		if opts.CACertPath == "" {
			opts.CACertPath = config.Config.CACertPath
		}

		return commandsService.Chat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	ChatCmd.Flags().StringVarP(&chatOptions.Server, "server", "s", "", "Name or id of the target server")
	ChatCmd.Flags().BoolVar(&chatOptions.DryRun, "dry-run", false, "Plan and classify the commands without executing them")
	ChatCmd.Flags().BoolVarP(&chatOptions.AutoConfirm, "yes", "y", false, "Confirm risky commands without asking")
	ChatCmd.Flags().StringVar(&chatOptions.URL, "url", "", "WebSocket URL of the server (defaults to SHELLPILOT_URL)")
	ChatCmd.Flags().StringVar(&chatOptions.Token, "token", "", "Access token (defaults to SHELLPILOT_TOKEN)")
	ChatCmd.Flags().StringVar(&chatOptions.CACertPath, "ca-cert", "", "CA certificate to trust for wss:// URLs (defaults to SHELLPILOT_CA_CERT)")

	_ = ChatCmd.MarkFlagRequired("server")
}
