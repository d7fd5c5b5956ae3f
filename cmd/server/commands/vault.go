package commands

import (
	"github.com/spf13/cobra"
)

var VaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Encrypt and decrypt secrets with ENCRYPTION_KEY",
}

var VaultEncryptCmd = &cobra.Command{
	Use:   "encrypt [secret]",
	Short: "Print the encrypted token of a secret",
	Long:  `Print the encrypted token of a secret. The secret is read from the terminal without echo when it is not passed as an argument.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		secret := ""

		if len(args) > 0 {
			secret = args[0]
		} else {
			var err error
			secret, err = readPasswordSecurely("🔒 Enter secret: ", cmd.OutOrStdout(), cmd.ErrOrStderr(), true)

			if err != nil {
				cmd.PrintErrf("❌ Error: failed to read secret: %v\n", err)
				return
			}
		}

		commandsService.VaultEncrypt(secret, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var VaultDecryptCmd = &cobra.Command{
	Use:   "decrypt <token>",
	Short: "Print the plaintext of an encrypted token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commandsService.VaultDecrypt(args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	VaultCmd.AddCommand(VaultEncryptCmd)
	VaultCmd.AddCommand(VaultDecryptCmd)
}
