package ssh

import (
	"errors"
	"fmt"
)

// SSH connection errors
var (
	ErrNoAuthMethodProvided      = errors.New("no valid authentication method provided")
	ErrFailedToCreateAuth        = errors.New("failed to create auth")
	ErrFailedToCreateSSHClient   = errors.New("failed to create SSH client")
	ErrFailedToTestSSHConnection = errors.New("failed to test SSH connection")
)

// Command execution errors
var (
	ErrFailedToCreateSession = errors.New("failed to create SSH session")
	ErrFailedToRequestPty    = errors.New("failed to request pseudo terminal")
	ErrCommandTimedOut       = errors.New("command timed out")
)

// ConnectionError is returned when a session cannot be established. The
// connection is not cached and the manager never retries on its own.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("SSH connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
