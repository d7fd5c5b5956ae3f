package planner

import "errors"

var (
	ErrFailedToMarshalRequest = errors.New("failed to marshal planner request")
	ErrFailedToExecuteRequest = errors.New("failed to execute planner request")
	ErrUnexpectedStatus       = errors.New("unexpected planner response status")
	ErrInvalidResponse        = errors.New("invalid planner response")
	ErrEmptyPlan              = errors.New("planner returned an empty plan")
)
