package encryption

import "errors"

// Configuration errors
var (
	ErrMasterSecretTooShort = errors.New("ENCRYPTION_KEY must be at least 32 characters")
	ErrDeriveKey            = errors.New("failed to derive encryption key")
)

// Integrity errors. Every decrypt failure wraps ErrIntegrity so callers can
// treat tampering and format problems the same way.
var (
	ErrIntegrity          = errors.New("credential integrity check failed")
	ErrMalformedToken     = errors.New("ciphertext token must have three colon-separated fields")
	ErrInvalidHexEncoding = errors.New("ciphertext token field is not valid hex")
)

var (
	ErrEncrypt = errors.New("failed to encrypt credential")
)
