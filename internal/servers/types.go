package servers

import (
	"time"

	"shellpilot/internal/ssh"
)

const DefaultPort = 22

type Status string

const (
	StatusConnected    Status = "CONNECTED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusError        Status = "ERROR"
)

// Server is a managed host. Secrets are stored as vault tokens and only
// decrypted when a connection is about to be made.
type Server struct {
	ID          string  `gorm:"type:text;primaryKey"`
	Name        string  `gorm:"type:text;not null;uniqueIndex"`
	Description *string `gorm:"type:text"`

	Host     string       `gorm:"type:text;not null"`
	Port     uint         `gorm:"type:integer;not null;default:22"`
	Username string       `gorm:"type:text;not null"`
	AuthType ssh.AuthType `gorm:"type:text;not null"`

	EncryptedPassword   *string `gorm:"type:text"`
	EncryptedPrivateKey *string `gorm:"type:text"`
	EncryptedPassphrase *string `gorm:"type:text"`

	Tags []string `gorm:"type:text;serializer:json;not null;default:'[]'"`

	Status         Status     `gorm:"type:text;not null;default:'DISCONNECTED'"`
	LastConnection *time.Time `gorm:"type:timestamp"`

	CreatedAt time.Time `gorm:"type:timestamp;not null"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null"`
}

// NewServer carries plaintext secrets from the caller. They are encrypted
// before the record is written.
type NewServer struct {
	Name        string
	Description string
	Host        string
	Port        uint
	Username    string
	AuthType    ssh.AuthType
	Password    string
	PrivateKey  string
	Passphrase  string
	Tags        []string
}
