package commands

import (
	"github.com/spf13/cobra"
)

var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage access tokens",
	Long:  `Manage the access tokens accepted by the chat channel and the REST API, in addition to the static tokens listed in CHANNEL_TOKENS.`,
}

var CreateTokenCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new access token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commandsService.TokenCreate(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var ListTokensCmd = &cobra.Command{
	Use:   "list",
	Short: "List access tokens",
	Run: func(cmd *cobra.Command, _ []string) {
		commandsService.TokenList(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var RevokeTokenCmd = &cobra.Command{
	Use:   "revoke <name|id>",
	Short: "Revoke an access token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commandsService.TokenRevoke(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	TokenCmd.AddCommand(CreateTokenCmd)
	TokenCmd.AddCommand(ListTokensCmd)
	TokenCmd.AddCommand(RevokeTokenCmd)
}
