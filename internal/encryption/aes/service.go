package aes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16
)

// Sealed is the output of Seal with the authentication tag detached from the
// ciphertext, so callers can persist the three parts independently.
type Sealed struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

func newGCM(aesKey []byte) (cipher.AEAD, error) {
	if len(aesKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(aesKey)

	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)

	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}

// Seal encrypts plainText with AES-256-GCM under a fresh random nonce.
func Seal(plainText []byte, aesKey []byte) (*Sealed, error) {
	gcm, err := newGCM(aesKey)

	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)

	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := gcm.Seal(nil, nonce, plainText, nil)
	split := len(out) - TagSize

	return &Sealed{
		Nonce:      nonce,
		Tag:        out[split:],
		Ciphertext: out[:split],
	}, nil
}

// Open verifies the tag and decrypts. Any verification failure is reported as
// ErrAuthenticationFailed and no plaintext is returned.
func Open(sealed *Sealed, aesKey []byte) ([]byte, error) {
	if len(sealed.Nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}

	if len(sealed.Tag) != TagSize {
		return nil, ErrInvalidTagSize
	}

	gcm, err := newGCM(aesKey)

	if err != nil {
		return nil, err
	}

	combined := make([]byte, 0, len(sealed.Ciphertext)+TagSize)
	combined = append(combined, sealed.Ciphertext...)
	combined = append(combined, sealed.Tag...)

	plainText, err := gcm.Open(nil, sealed.Nonce, combined, nil)

	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return plainText, nil
}
