package servers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shellpilot/internal/encryption"
	"shellpilot/internal/ssh"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db    *gorm.DB
	vault *encryption.Vault
}

func NewRepository(db *gorm.DB, vault *encryption.Vault) *Repository {
	return &Repository{
		db:    db,
		vault: vault,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func validate(input *NewServer) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Host = strings.TrimSpace(input.Host)
	input.Username = strings.TrimSpace(input.Username)

	switch {
	case input.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidServer)
	case input.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidServer)
	case input.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidServer)
	case input.Port > 65535:
		return fmt.Errorf("%w: port %d is out of range", ErrInvalidServer, input.Port)
	}

	if input.Port == 0 {
		input.Port = DefaultPort
	}

	switch input.AuthType {
	case ssh.AuthTypePassword:
		if input.Password == "" {
			return fmt.Errorf("%w: password is required for %s auth", ErrInvalidServer, input.AuthType)
		}
	case ssh.AuthTypeKey:
		if input.PrivateKey == "" {
			return fmt.Errorf("%w: private key is required for %s auth", ErrInvalidServer, input.AuthType)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAuthType, input.AuthType)
	}

	return nil
}

// Create validates the input, encrypts its secrets and stores a new server.
func (r *Repository) Create(ctx context.Context, input NewServer) (*Server, error) {
	if err := validate(&input); err != nil {
		return nil, err
	}

	server := &Server{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: optional(strings.TrimSpace(input.Description)),
		Host:        input.Host,
		Port:        input.Port,
		Username:    input.Username,
		AuthType:    input.AuthType,
		Tags:        input.Tags,
		Status:      StatusDisconnected,
	}

	if server.Tags == nil {
		server.Tags = []string{}
	}

	var err error

	if input.AuthType == ssh.AuthTypePassword {
		server.EncryptedPassword, err = r.vault.EncryptOptional(optional(input.Password))
	} else {
		server.EncryptedPrivateKey, err = r.vault.EncryptOptional(optional(input.PrivateKey))

		if err == nil {
			server.EncryptedPassphrase, err = r.vault.EncryptOptional(optional(input.Passphrase))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToEncrypt, err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64

		if err := tx.Model(&Server{}).Where("name = ?", server.Name).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateServerName, server.Name)
		}

		return tx.Create(server).Error
	})

	if err != nil {
		return nil, err
	}

	return server, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Server, error) {
	var server Server

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&server).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}

		return nil, err
	}

	return &server, nil
}

// GetByName resolves a server by id first and by name second, so CLI users
// can refer to servers either way.
func (r *Repository) GetByName(ctx context.Context, nameOrID string) (*Server, error) {
	server, err := r.Get(ctx, nameOrID)

	if err == nil || !errors.Is(err, ErrServerNotFound) {
		return server, err
	}

	var byName Server

	err = r.db.WithContext(ctx).Where("name = ?", nameOrID).First(&byName).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}

		return nil, err
	}

	return &byName, nil
}

// List returns all servers, newest first.
func (r *Repository) List(ctx context.Context) ([]*Server, error) {
	var servers []*Server

	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&servers).Error; err != nil {
		return nil, err
	}

	return servers, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Server{}, "id = ?", id)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrServerNotFound
	}

	return nil
}

// UpdateStatus records the outcome of a connection attempt. A successful
// connection also bumps LastConnection.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	updates := map[string]interface{}{"status": status}

	if status == StatusConnected {
		updates["last_connection"] = time.Now()
	}

	result := r.db.WithContext(ctx).Model(&Server{}).Where("id = ?", id).Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrServerNotFound
	}

	return nil
}

// Credentials decrypts the stored secrets of a server into connection
// credentials. The result must not be persisted or logged.
func (r *Repository) Credentials(ctx context.Context, serverID string) (*ssh.Credentials, error) {
	server, err := r.Get(ctx, serverID)

	if err != nil {
		return nil, err
	}

	creds := &ssh.Credentials{
		Host:     server.Host,
		Port:     server.Port,
		Username: server.Username,
		AuthType: server.AuthType,
	}

	switch server.AuthType {
	case ssh.AuthTypePassword:
		if server.EncryptedPassword == nil {
			return nil, ErrMissingSecret
		}

		password, err := r.vault.Decrypt(*server.EncryptedPassword)

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToDecrypt, err)
		}

		creds.Password = password
	case ssh.AuthTypeKey:
		if server.EncryptedPrivateKey == nil {
			return nil, ErrMissingSecret
		}

		privateKey, err := r.vault.Decrypt(*server.EncryptedPrivateKey)

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToDecrypt, err)
		}

		passphrase, err := r.vault.DecryptOptional(server.EncryptedPassphrase)

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToDecrypt, err)
		}

		creds.PrivateKey = privateKey

		if passphrase != nil {
			creds.Passphrase = *passphrase
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAuthType, server.AuthType)
	}

	return creds, nil
}
