package execution

import (
	"context"

	"shellpilot/internal/events"
	"shellpilot/internal/planner"
	"shellpilot/internal/risk"
	"shellpilot/internal/ssh"
)

// Planner turns an intent into a plan and the plan into commands.
type Planner interface {
	Plan(ctx context.Context, prompt string, pctx planner.Context) (*events.Plan, error)
	Commands(ctx context.Context, plan *events.Plan, pctx planner.Context) (*planner.CommandSet, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, prompt string, results []ssh.CommandResult) (*events.Analysis, error)
}

type RiskClassifier interface {
	Classify(ctx context.Context, commands []string) (*risk.Assessment, error)
}

// CredentialSource resolves a server id to decrypted connection credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, serverID string) (*ssh.Credentials, error)
}

// Executor runs a command list in order and stops at the first failure. It
// sends output on the given channel and never closes it.
type Executor interface {
	ExecuteCommands(ctx context.Context, serverID string, commands []string, creds *ssh.Credentials, output chan<- ssh.Output) []ssh.CommandResult
}

// Recorder receives every execution once it has reached a terminal state
// and its worker has stopped.
type Recorder interface {
	Record(ctx context.Context, snapshot Snapshot) error
}

// Sink delivers events to the client that owns an execution. Emit must
// preserve call order and must not block indefinitely once the client is
// gone.
type Sink interface {
	Emit(e events.Event)
}
