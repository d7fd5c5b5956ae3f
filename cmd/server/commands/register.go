package commands

import (
	"shellpilot/cmd/server/config"
	"shellpilot/internal/commands"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	dbInstance      *gorm.DB
	commandsService *commands.Service
)

func RegisterCommands(rootCmd *cobra.Command, db *gorm.DB) {
	dbInstance = db
	commandsService = commands.NewService(db, config.Config)

	rootCmd.AddCommand(ServeCmd)
	rootCmd.AddCommand(ServerCmd)
	rootCmd.AddCommand(ChatCmd)
	rootCmd.AddCommand(HistoryCmd)
	rootCmd.AddCommand(VaultCmd)
	rootCmd.AddCommand(TokenCmd)
}
