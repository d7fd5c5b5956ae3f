package history

import "errors"

var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrNotTerminal       = errors.New("execution has not finished")
)
