package accesstokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"shellpilot/internal/channel"
	"shellpilot/internal/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	tokenPrefix = "sp_"
	tokenBytes  = 32
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ channel.TokenVerifier = (*Repository)(nil)

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generate() (string, error) {
	buf := make([]byte, tokenBytes)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return tokenPrefix + hex.EncodeToString(buf), nil
}

// Create stores a new token under name and returns it together with the
// plaintext, which is not recoverable afterwards.
func (r *Repository) Create(ctx context.Context, name string) (*AccessToken, string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, "", ErrInvalidTokenName
	}

	plainText, err := generate()

	if err != nil {
		return nil, "", err
	}

	accessToken := &AccessToken{
		ID:        uuid.NewString(),
		Name:      name,
		Digest:    digest(plainText),
		CreatedAt: time.Now(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64

		if err := tx.Model(&AccessToken{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return ErrDuplicateTokenName
		}

		return tx.Create(accessToken).Error
	})

	if err != nil {
		return nil, "", err
	}

	return accessToken, plainText, nil
}

func (r *Repository) List(ctx context.Context) ([]*AccessToken, error) {
	var tokens []*AccessToken

	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tokens).Error

	if err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&AccessToken{}).Count(&count).Error

	return count, err
}

// Revoke deletes the token with the given id or name.
func (r *Repository) Revoke(ctx context.Context, nameOrID string) (*AccessToken, error) {
	accessToken := &AccessToken{}

	err := r.db.WithContext(ctx).Where("id = ? OR name = ?", nameOrID, nameOrID).First(accessToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if err := r.db.WithContext(ctx).Delete(accessToken).Error; err != nil {
		return nil, err
	}

	return accessToken, nil
}

// Verify looks the token up by digest and records when it was last used.
func (r *Repository) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", channel.ErrMissingToken
	}

	accessToken := &AccessToken{}

	err := r.db.WithContext(ctx).Where("digest = ?", digest(token)).First(accessToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", channel.ErrInvalidToken
		}
		return "", err
	}

	now := time.Now()

	if err := r.db.WithContext(ctx).Model(accessToken).Update("last_used_at", now).Error; err != nil {
		logger.Warn("Failed to record use of access token %s: %v", accessToken.Name, err)
	}

	return "token:" + accessToken.Name, nil
}
