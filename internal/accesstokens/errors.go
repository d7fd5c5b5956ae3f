package accesstokens

import "errors"

var (
	ErrTokenNotFound      = errors.New("access token not found")
	ErrDuplicateTokenName = errors.New("an access token with this name already exists")
	ErrInvalidTokenName   = errors.New("access token name must not be empty")
)
