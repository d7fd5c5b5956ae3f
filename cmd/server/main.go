package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"shellpilot/cmd/server/commands"
	"shellpilot/cmd/server/config"
	"shellpilot/internal/database"
	"shellpilot/internal/logger"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "shellpilot",
	Short: "Plan and run shell commands on remote servers from natural-language prompts",
	Long: `shellpilot turns a natural-language request into a plan of shell commands, classifies every command by risk, asks for confirmation when needed and runs the approved commands on a registered server over SSH, streaming the output back as it happens.

Key Concepts:

- SERVER – a remote host reachable over SSH. Credentials are encrypted with ENCRYPTION_KEY before they are stored.
- EXECUTION – one prompt turned into a plan and a list of commands, run in order on one server. Critical commands are blocked, risky ones wait for confirmation.
- CHAT – the WebSocket channel (/ws/chat) clients use to start, confirm and cancel executions and to receive their events.

Getting started:

1. Register a server:

shellpilot server add deploy@10.0.0.5:22 --name web-1 --test

2. Start the execution server (requires ENCRYPTION_KEY, CHANNEL_TOKENS and PLANNER_URL):

shellpilot serve

3. Ask for something to be done:

shellpilot chat --server web-1 "show the five largest directories under /var"
`,
	Version: fmt.Sprintf("%s (commit: %s, arch: %s, os: %s); db path: %s; profile: %s", version, commit, runtime.GOARCH, runtime.GOOS, config.Config.DatabasePath, config.Config.Profile),
}

func main() {
	logger.Init(config.Config.LogLevel, config.Config.LogFormat)

	db, err := database.InitDB(config.Config.DatabasePath)

	if err != nil {
		rootCmd.PrintErrf("Failed to initialize database at %s: %v\n", config.Config.DatabasePath, err)
		os.Exit(1)
	}

	commands.RegisterCommands(rootCmd, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	execErr := rootCmd.ExecuteContext(ctx)

	stop()

	if err := database.CloseDB(db); err != nil {
		rootCmd.PrintErrf("Failed to close database: %v\n", err)
	}

	if execErr != nil {
		os.Exit(1)
	}
}
