package history

import (
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/execution"
)

// ExecutionRecord is a finished execution. Credentials never reach this
// table; only the server id is kept.
type ExecutionRecord struct {
	ID       string           `gorm:"type:text;primaryKey" json:"id"`
	ServerID string           `gorm:"type:text;not null;index:idx_execution_server_created" json:"serverId"`
	Prompt   string           `gorm:"type:text;not null" json:"prompt"`
	DryRun   bool             `gorm:"type:boolean;not null;default:false" json:"dryRun"`
	Status   execution.Status `gorm:"type:text;not null" json:"status"`

	Plan        *events.Plan `gorm:"type:text;serializer:json" json:"plan"`
	Commands    []string     `gorm:"type:text;serializer:json;not null" json:"commands"`
	Explanation string       `gorm:"type:text" json:"explanation"`
	Warnings    []string     `gorm:"type:text;serializer:json;not null" json:"warnings"`
	RiskLevel   string       `gorm:"type:text;not null" json:"riskLevel"`

	RequiresConfirmation bool `gorm:"type:boolean;not null;default:false" json:"requiresConfirmation"`

	Results  []CommandRecord  `gorm:"foreignKey:ExecutionID;constraint:OnDelete:CASCADE" json:"results"`
	Output   string           `gorm:"type:text" json:"output"`
	Analysis *events.Analysis `gorm:"type:text;serializer:json" json:"analysis"`
	Error    string           `gorm:"type:text" json:"error"`

	CreatedAt  time.Time `gorm:"type:timestamp;not null;index:idx_execution_server_created" json:"createdAt"`
	FinishedAt time.Time `gorm:"type:timestamp;not null" json:"finishedAt"`
}

// CommandRecord is the outcome of one command of an execution, in run order.
type CommandRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ExecutionID string `gorm:"type:text;not null;index" json:"executionId"`
	Position    int    `gorm:"type:integer;not null" json:"position"`
	Command     string `gorm:"type:text;not null" json:"command"`
	Stdout      string `gorm:"type:text" json:"stdout"`
	Stderr      string `gorm:"type:text" json:"stderr"`
	ExitCode    int    `gorm:"type:integer;not null" json:"exitCode"`
	Success     bool   `gorm:"type:boolean;not null" json:"success"`
}
