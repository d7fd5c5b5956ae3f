package accesstokens

import "time"

// AccessToken is a named credential for the chat channel and the REST API.
// Only the SHA-256 digest of the token is stored.
type AccessToken struct {
	ID         string     `gorm:"type:text;primaryKey"`
	Name       string     `gorm:"type:text;not null;uniqueIndex"`
	Digest     string     `gorm:"type:text;not null;uniqueIndex:idx_access_token_digest"`
	CreatedAt  time.Time  `gorm:"type:timestamp;not null"`
	LastUsedAt *time.Time `gorm:"type:timestamp"`
}
