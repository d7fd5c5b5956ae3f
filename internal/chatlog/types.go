package chatlog

import (
	"time"

	"shellpilot/internal/events"
)

type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeSystem    MessageType = "system"
	MessageTypeCommand   MessageType = "command"
	MessageTypeOutput    MessageType = "output"
	MessageTypeError     MessageType = "error"
)

type Metadata struct {
	ExecutionID string       `json:"executionId,omitempty"`
	Plan        *events.Plan `json:"plan,omitempty"`
	Commands    []string     `json:"commands,omitempty"`
	RiskLevel   string       `json:"riskLevel,omitempty"`
}

// Message is one rendered entry of a chat transcript.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Metadata  *Metadata   `json:"metadata,omitempty"`
}
