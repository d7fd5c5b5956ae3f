package chatlog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"shellpilot/internal/events"

	"github.com/google/uuid"
)

// Log is an append-only chat transcript built from channel events. It is safe
// for concurrent use.
type Log struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

// AddUser records a prompt typed by the user.
func (l *Log) AddUser(prompt string) Message {
	return l.append(MessageTypeUser, prompt, nil)
}

// AddSystem records a local notice, such as a cancellation requested by the user.
func (l *Log) AddSystem(text string) Message {
	return l.append(MessageTypeSystem, text, nil)
}

// Apply renders an outbound event and appends the resulting message.
func (l *Log) Apply(e events.Event) (Message, error) {
	messageType, content, metadata, err := renderEvent(e)

	if err != nil {
		return Message{}, err
	}

	return l.append(messageType, content, metadata), nil
}

// Messages returns a copy of the transcript in insertion order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)

	return out
}

func (l *Log) append(messageType MessageType, content string, metadata *Metadata) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := Message{
		ID:        uuid.NewString(),
		Type:      messageType,
		Content:   content,
		Timestamp: l.now(),
		Metadata:  metadata,
	}

	l.messages = append(l.messages, message)

	return message
}

func renderEvent(e events.Event) (MessageType, string, *Metadata, error) {
	metadata := &Metadata{ExecutionID: events.ExecutionID(e)}

	var (
		messageType MessageType
		name        string
		ctx         map[string]interface{}
	)

	switch ev := e.(type) {
	case events.Status:
		messageType, name = MessageTypeSystem, "status"
		ctx = map[string]interface{}{"message": ev.Message}
	case events.PlanEvent:
		plan := ev.Plan
		metadata.Plan = &plan
		messageType, name = MessageTypeAssistant, "plan"
		ctx = map[string]interface{}{
			"objective":     ev.Plan.Objective,
			"steps":         ev.Plan.Steps,
			"risks":         ev.Plan.Risks,
			"estimatedTime": ev.Plan.EstimatedTime,
		}
	case events.Commands:
		metadata.Commands = ev.Commands
		metadata.RiskLevel = ev.RiskLevel
		messageType, name = MessageTypeAssistant, "commands"
		ctx = map[string]interface{}{
			"commands":             ev.Commands,
			"explanation":          ev.Explanation,
			"riskLevel":            ev.RiskLevel,
			"requiresConfirmation": ev.RequiresConfirmation,
			"warnings":             ev.Warnings,
		}
	case events.Output:
		if ev.Type == "stderr" {
			return MessageTypeError, ev.Content, metadata, nil
		}

		if strings.HasPrefix(ev.Content, "$ ") {
			return MessageTypeCommand, ev.Content, metadata, nil
		}

		return MessageTypeOutput, ev.Content, metadata, nil
	case events.Blocked:
		messageType, name = MessageTypeError, "blocked"
		ctx = map[string]interface{}{
			"blockedCommands": ev.BlockedCommands,
			"reason":          ev.Reason,
		}
	case events.Complete:
		messageType, name = MessageTypeAssistant, "complete"
		ctx = map[string]interface{}{
			"success":   ev.Success,
			"summary":   ev.Analysis.Summary,
			"details":   ev.Analysis.Details,
			"nextSteps": ev.Analysis.NextSteps,
		}
	case events.Error:
		messageType, name = MessageTypeError, "error"
		ctx = map[string]interface{}{"message": ev.Message}
	default:
		return "", "", nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, e.Kind())
	}

	content, err := render(name, ctx)

	if err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", ErrFailedToRender, err)
	}

	return messageType, content, metadata, nil
}
