package commands

import (
	"errors"
	"os"

	"shellpilot/internal/servers"
	"shellpilot/internal/ssh"

	"github.com/spf13/cobra"
)

var serverName = ""
var serverDescription = ""
var serverTags = ""
var testAfterAdd = false

var errConnectionFailed = errors.New("connection test failed")

var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage remote servers",
	Long:  `Register, list, test and remove the servers that commands can be executed on. Credentials are encrypted with ENCRYPTION_KEY before they are stored.`,
}

var AddServerCmd = &cobra.Command{
	Use:   "add username@hostname[:port]",
	Short: "Register a new server",
	Long:  `Register a new server. Without --ssh-key-path the SSH password is read interactively; with it the key file is stored and its passphrase is asked for.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username, hostname, port, err := parseSSHURL(args[0])

		if err != nil {
			cmd.PrintErrf("❌ Error: failed to parse SSH URL '%s': %v\n", args[0], err)
			return
		}

		input := servers.NewServer{
			Name:        serverName,
			Description: serverDescription,
			Host:        hostname,
			Port:        port,
			Username:    username,
			Tags:        parseTags(serverTags),
		}

		if input.Name == "" {
			input.Name = hostname
		}

		if keyPath := cmd.Flag("ssh-key-path").Value.String(); keyPath != "" {
			key, err := os.ReadFile(keyPath)

			if err != nil {
				cmd.PrintErrf("❌ Error: failed to read SSH key: %v\n", err)
				return
			}

			input.AuthType = ssh.AuthTypeKey
			input.PrivateKey = string(key)

			if passphrase, err := readPasswordSecurely("🔒 Enter SSH key passphrase (leave empty if none): ", cmd.OutOrStdout(), cmd.ErrOrStderr(), false); err == nil {
				input.Passphrase = passphrase
			}
		} else {
			password, err := readPasswordSecurely("🔒 Enter SSH password: ", cmd.OutOrStdout(), cmd.ErrOrStderr(), false)

			if err != nil {
				cmd.PrintErrf("❌ Error: failed to read password: %v\n", err)
				return
			}

			input.AuthType = ssh.AuthTypePassword
			input.Password = password
		}

		commandsService.ServerAdd(cmd.Context(), input, cmd.OutOrStdout(), cmd.ErrOrStderr())

		if testAfterAdd {
			commandsService.ServerTest(cmd.Context(), input.Name, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}
	},
}

var ListServersCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Run: func(cmd *cobra.Command, _ []string) {
		commandsService.ServerList(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var TestServerCmd = &cobra.Command{
	Use:   "test <name|id>",
	Short: "Check SSH connectivity to a registered server",
	Long:  `Open a short-lived SSH connection with the stored credentials and record the result as the server status.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !commandsService.ServerTest(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr()) {
			cmd.SilenceUsage = true
			return errConnectionFailed
		}
		return nil
	},
}

var RemoveServerCmd = &cobra.Command{
	Use:   "remove <name|id>",
	Short: "Remove a registered server and its stored credentials",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commandsService.ServerRemove(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	AddServerCmd.Flags().StringVarP(&serverName, "name", "n", "", "Display name of the server (defaults to the hostname)")
	AddServerCmd.Flags().StringVarP(&serverDescription, "description", "d", "", "Free-form description")
	AddServerCmd.Flags().StringVar(&serverTags, "tags", "", "Comma separated list of tags (e.g. prod,web)")
	AddServerCmd.Flags().BoolVar(&testAfterAdd, "test", false, "Test the SSH connection right after registering the server")
	AddServerCmd.Flags().String("ssh-key-path", "", "Path to SSH private key file (for key-based authentication)")

	ServerCmd.AddCommand(AddServerCmd)
	ServerCmd.AddCommand(ListServersCmd)
	ServerCmd.AddCommand(TestServerCmd)
	ServerCmd.AddCommand(RemoveServerCmd)
}
