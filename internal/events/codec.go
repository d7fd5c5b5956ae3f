package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the wire frame: {"event":"<kind>","data":{...}}
type envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(withEmptySlices(e))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return json.Marshal(envelope{Event: e.Kind(), Data: data})
}

// DecodeInbound parses and validates a client frame. Every failure wraps
// ErrMalformedEvent.
func DecodeInbound(frame []byte) (Event, error) {
	env, err := decodeEnvelope(frame)

	if err != nil {
		return nil, err
	}

	if !env.Event.Inbound() {
		return nil, directionError(env.Event)
	}

	switch env.Event {
	case KindExecute:
		var e Execute
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}

		e.ServerID = strings.TrimSpace(e.ServerID)
		e.Prompt = strings.TrimSpace(e.Prompt)

		if e.ServerID == "" {
			return nil, missing(env.Event, "serverId")
		}

		if e.Prompt == "" {
			return nil, missing(env.Event, "prompt")
		}

		return e, nil
	case KindConfirm:
		var e Confirm
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}

		if e.ExecutionID == "" {
			return nil, missing(env.Event, "executionId")
		}

		return e, nil
	default:
		var e Cancel
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}

		if e.ExecutionID == "" {
			return nil, missing(env.Event, "executionId")
		}

		return e, nil
	}
}

// DecodeOutbound parses a server frame on the client side.
func DecodeOutbound(frame []byte) (Event, error) {
	env, err := decodeEnvelope(frame)

	if err != nil {
		return nil, err
	}

	if !env.Event.Outbound() {
		return nil, directionError(env.Event)
	}

	switch env.Event {
	case KindStatus:
		return decodeAs[Status](env.Data)
	case KindPlan:
		return decodeAs[PlanEvent](env.Data)
	case KindCommands:
		return decodeAs[Commands](env.Data)
	case KindOutput:
		return decodeAs[Output](env.Data)
	case KindBlocked:
		return decodeAs[Blocked](env.Data)
	case KindComplete:
		return decodeAs[Complete](env.Data)
	default:
		return decodeAs[Error](env.Data)
	}
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var e T

	if err := decodeData(data, &e); err != nil {
		return nil, err
	}

	return e, nil
}

func decodeEnvelope(frame []byte) (*envelope, error) {
	var env envelope

	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if env.Event == "" {
		return nil, missing("", "event")
	}

	if !env.Event.Inbound() && !env.Event.Outbound() {
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedEvent, ErrUnknownEvent, env.Event)
	}

	return &env, nil
}

func decodeData(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %w: data", ErrMalformedEvent, ErrMissingField)
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return nil
}

func missing(kind Kind, field string) error {
	if kind == "" {
		return fmt.Errorf("%w: %w: %s", ErrMalformedEvent, ErrMissingField, field)
	}

	return fmt.Errorf("%w: %w: %s.%s", ErrMalformedEvent, ErrMissingField, kind, field)
}

func directionError(kind Kind) error {
	return fmt.Errorf("%w: %w: %q", ErrMalformedEvent, ErrWrongDirection, kind)
}

// withEmptySlices makes list fields encode as [] rather than null so clients
// can iterate them unconditionally.
func withEmptySlices(e Event) Event {
	switch ev := e.(type) {
	case PlanEvent:
		ev.Plan.Steps = orEmpty(ev.Plan.Steps)
		ev.Plan.Risks = orEmpty(ev.Plan.Risks)
		return ev
	case Commands:
		ev.Commands = orEmpty(ev.Commands)
		ev.Warnings = orEmpty(ev.Warnings)
		return ev
	case Blocked:
		ev.BlockedCommands = orEmpty(ev.BlockedCommands)
		return ev
	case Complete:
		ev.Analysis.NextSteps = orEmpty(ev.Analysis.NextSteps)
		return ev
	}

	return e
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
