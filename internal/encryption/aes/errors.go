package aes

import "errors"

var (
	ErrInvalidKeySize       = errors.New("aes key must be 32 bytes")
	ErrInvalidNonceSize     = errors.New("invalid nonce size")
	ErrInvalidTagSize       = errors.New("invalid authentication tag size")
	ErrAuthenticationFailed = errors.New("message authentication failed")
)
