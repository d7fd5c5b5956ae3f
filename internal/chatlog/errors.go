package chatlog

import "errors"

var (
	ErrUnknownTemplate  = errors.New("unknown message template")
	ErrFailedToRender   = errors.New("failed to render message")
	ErrUnsupportedEvent = errors.New("event has no chat rendering")
)
