package ssh

import (
	"context"

	"shellpilot/internal/logger"
)

// ExecuteCommands runs commands strictly in order against one server and
// stops after the first unsuccessful result. The returned slice holds every
// result produced so far, including the failing one.
//
// For each command, the echoed invocation and then its stdout and stderr are
// sent on output (which may be nil). The caller owns output, must keep
// draining it and closes it after ExecuteCommands returns.
//
// ctx is checked between commands only. A command that has already been
// dispatched always runs to completion.
//
// The server lock is held for the whole sequence, so sequences sent to the
// same server never interleave.
func (m *Manager) ExecuteCommands(ctx context.Context, serverID string, commands []string, creds *Credentials, output chan<- Output) []CommandResult {
	unlock := m.locks.Lock(serverID)
	defer unlock()

	results := make([]CommandResult, 0, len(commands))

	for i, command := range commands {
		if err := ctx.Err(); err != nil {
			logger.Info("Stopping command sequence on server %s before step %d/%d: %v", serverID, i+1, len(commands), err)
			break
		}

		emit(output, StreamStdout, "$ "+command)

		result := m.executeLocked(ctx, serverID, command, creds)
		results = append(results, result)

		emit(output, StreamStdout, result.Stdout)
		emit(output, StreamStderr, result.Stderr)

		if !result.Success {
			logger.Warn("Command %d/%d on server %s failed (exit %d); aborting sequence", i+1, len(commands), serverID, result.ExitCode)
			break
		}
	}

	return results
}

func emit(output chan<- Output, stream Stream, content string) {
	if output == nil || content == "" {
		return
	}

	output <- Output{Stream: stream, Content: content}
}
