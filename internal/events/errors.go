package events

import "errors"

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event kind")
	ErrWrongDirection = errors.New("event kind not accepted in this direction")
	ErrMissingField   = errors.New("missing required field")
)
