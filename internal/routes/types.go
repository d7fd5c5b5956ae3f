package routes

import (
	"errors"
	"time"

	"shellpilot/internal/execution"
	"shellpilot/internal/servers"
	"shellpilot/internal/ssh"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

type healthDTO struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorDTO struct {
	Error string `json:"error"`
}

// serverDTO never carries credentials, encrypted or not.
type serverDTO struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description"`
	Host           string         `json:"host"`
	Port           uint           `json:"port"`
	Username       string         `json:"username"`
	AuthType       ssh.AuthType   `json:"authType"`
	Status         servers.Status `json:"status"`
	Connected      bool           `json:"connected"`
	LastConnection *time.Time     `json:"lastConnection"`
	Tags           []string       `json:"tags"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func newServerDTO(s *servers.Server, connected bool) serverDTO {
	tags := s.Tags

	if tags == nil {
		tags = []string{}
	}

	return serverDTO{
		ID:             s.ID,
		Name:           s.Name,
		Description:    s.Description,
		Host:           s.Host,
		Port:           s.Port,
		Username:       s.Username,
		AuthType:       s.AuthType,
		Status:         s.Status,
		Connected:      connected,
		LastConnection: s.LastConnection,
		Tags:           tags,
		CreatedAt:      s.CreatedAt,
	}
}

// activeExecutionDTO leaves out the owner, which identifies a channel token.
type activeExecutionDTO struct {
	ID                   string           `json:"id"`
	ServerID             string           `json:"serverId"`
	Prompt               string           `json:"prompt"`
	DryRun               bool             `json:"dryRun"`
	Status               execution.Status `json:"status"`
	Commands             []string         `json:"commands"`
	RiskLevel            string           `json:"riskLevel,omitempty"`
	RequiresConfirmation bool             `json:"requiresConfirmation"`
	CompletedCommands    int              `json:"completedCommands"`
	CreatedAt            time.Time        `json:"createdAt"`
}

func newActiveExecutionDTO(s execution.Snapshot) activeExecutionDTO {
	commands := s.Commands

	if commands == nil {
		commands = []string{}
	}

	riskLevel := ""

	if len(s.Commands) > 0 {
		riskLevel = s.RiskLevel.String()
	}

	return activeExecutionDTO{
		ID:                   s.ID,
		ServerID:             s.ServerID,
		Prompt:               s.Prompt,
		DryRun:               s.DryRun,
		Status:               s.Status,
		Commands:             commands,
		RiskLevel:            riskLevel,
		RequiresConfirmation: s.RequiresConfirmation,
		CompletedCommands:    len(s.Results),
		CreatedAt:            s.CreatedAt,
	}
}
