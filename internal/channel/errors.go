package channel

import "errors"

var (
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidToken  = errors.New("invalid authentication token")
	ErrUnauthorized  = errors.New("channel connection refused: unauthorized")
	ErrFailedToDial  = errors.New("failed to connect to channel")
	ErrClientClosed  = errors.New("channel client closed")
	ErrRateLimited   = errors.New("rate limit exceeded, event dropped")
	ErrFailedToWrite = errors.New("failed to write channel event")
)
