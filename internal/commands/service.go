package commands

import (
	"fmt"
	"time"

	"shellpilot/cmd/server/config"
	"shellpilot/internal/accesstokens"
	"shellpilot/internal/encryption"
	"shellpilot/internal/history"
	"shellpilot/internal/servers"
	"shellpilot/internal/ssh"

	"golang.org/x/crypto/ssh/knownhosts"
	"gorm.io/gorm"
)

// Service implements the CLI commands. Every method writes human readable
// output to stdOut and failures to errOut.
type Service struct {
	DB     *gorm.DB
	Config *config.Configuration

	HistoryRepository      *history.Repository
	AccessTokensRepository *accesstokens.Repository
}

func NewService(db *gorm.DB, cfg *config.Configuration) *Service {
	return &Service{
		DB:                     db,
		Config:                 cfg,
		HistoryRepository:      history.NewRepository(db),
		AccessTokensRepository: accesstokens.NewRepository(db),
	}
}

// serversRepository needs the vault, which is only available when
// ENCRYPTION_KEY is set, so it is built on demand.
func (s *Service) serversRepository() (*servers.Repository, error) {
	vault, err := encryption.NewVault(s.Config.EncryptionKey)

	if err != nil {
		return nil, err
	}

	return servers.NewRepository(s.DB, vault), nil
}

// serverLookup serves listing, lookups and removal, none of which decrypt
// anything, so it works without ENCRYPTION_KEY.
func (s *Service) serverLookup() *servers.Repository {
	return servers.NewRepository(s.DB, nil)
}

func (s *Service) sshManager() (*ssh.Manager, error) {
	opts := []ssh.Option{
		ssh.WithConnectTimeout(s.Config.SSHConnectTimeout),
		ssh.WithTestTimeout(s.Config.SSHTestTimeout),
		ssh.WithKeepAliveInterval(s.Config.SSHKeepAliveInterval),
		ssh.WithCommandTimeout(s.Config.CommandTimeout),
	}

	if s.Config.KnownHostsPath != "" {
		callback, err := knownhosts.New(s.Config.KnownHostsPath)

		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts from %s: %w", s.Config.KnownHostsPath, err)
		}

		opts = append(opts, ssh.WithHostKeyCallback(callback))
	}

	return ssh.NewManager(opts...), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}

	return t.Local().Format(time.DateTime)
}
