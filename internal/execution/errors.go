package execution

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition       = errors.New("invalid execution state transition")
	ErrUnknownExecution        = errors.New("unknown execution")
	ErrNotAwaitingConfirmation = errors.New("execution is not awaiting confirmation")
	ErrInvalidRequest          = errors.New("invalid execute request")
	ErrShuttingDown            = errors.New("orchestrator is shutting down")
)

// Execution failures reported through error events
var (
	ErrNoCommands     = errors.New("planner returned no commands")
	ErrNoCredentials  = errors.New("failed to load server credentials")
	ErrPlanningFailed = errors.New("failed to create execution plan")
	ErrCommandsFailed = errors.New("failed to generate commands")
	ErrRiskAssessment = errors.New("failed to assess command risk")
	ErrInternal       = errors.New("internal execution error")
)

// ProtocolError rejects a client request (unknown or foreign execution id,
// confirm outside AWAITING_CONFIRMATION, invalid payload). The channel
// reports it as an error event and stays open.
type ProtocolError struct {
	ExecutionID string
	Err         error
}

func (e *ProtocolError) Error() string {
	if e.ExecutionID == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%v: %s", e.Err, e.ExecutionID)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(executionID string, err error) *ProtocolError {
	return &ProtocolError{ExecutionID: executionID, Err: err}
}
