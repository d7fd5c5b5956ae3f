package risk

import "errors"

var (
	ErrUnknownLevel       = errors.New("unknown risk level")
	ErrInvalidPolicy      = errors.New("invalid risk policy")
	ErrFailedToReadPolicy = errors.New("failed to read risk policy")
)
