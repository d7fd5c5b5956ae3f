package servers

import "errors"

var (
	ErrServerNotFound      = errors.New("server not found")
	ErrInvalidServer       = errors.New("invalid server")
	ErrUnsupportedAuthType = errors.New("unsupported auth type")
	ErrFailedToEncrypt     = errors.New("failed to encrypt server credentials")
	ErrFailedToDecrypt     = errors.New("failed to decrypt server credentials")
	ErrMissingSecret       = errors.New("server has no stored secret for its auth type")
	ErrDuplicateServerName = errors.New("a server with this name already exists")
)
