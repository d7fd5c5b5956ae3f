package planner

import (
	"shellpilot/internal/events"
	"shellpilot/internal/ssh"
)

// Context describes the target host to the planning service. It never carries
// secrets.
type Context struct {
	ServerID string `json:"serverId"`
	Host     string `json:"host,omitempty"`
	Username string `json:"username,omitempty"`
	DryRun   bool   `json:"dryRun"`
}

type CommandSet struct {
	Commands    []string `json:"commands"`
	Explanation string   `json:"explanation"`
	Warnings    []string `json:"warnings"`
}

type planRequestDTO struct {
	Prompt  string  `json:"prompt"`
	Context Context `json:"context"`
}

type commandsRequestDTO struct {
	Plan    events.Plan `json:"plan"`
	Context Context     `json:"context"`
}

type analyzeRequestDTO struct {
	Prompt  string              `json:"prompt"`
	Results []ssh.CommandResult `json:"results"`
}

type errorResponseDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
