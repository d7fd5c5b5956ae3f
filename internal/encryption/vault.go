package encryption

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"shellpilot/internal/encryption/aes"

	"golang.org/x/crypto/scrypt"
)

const (
	MinMasterSecretLength = 32

	// scrypt parameters and salt are fixed so that every installation sharing a
	// master secret derives the same key and can read existing tokens. Changing
	// any of them invalidates all stored credentials.
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptSalt   = "salt"
	tokenFields  = 3
	tokenDivider = ":"
)

// Vault encrypts host secrets at rest. Tokens have the form
// hex(nonce):hex(tag):hex(ciphertext).
type Vault struct {
	key []byte
}

// ValidMasterSecret reports whether masterSecret is long enough, counting
// characters rather than bytes.
func ValidMasterSecret(masterSecret string) bool {
	return utf8.RuneCountInString(masterSecret) >= MinMasterSecretLength
}

// NewVault derives the vault key from masterSecret, which must be at least
// MinMasterSecretLength characters long.
func NewVault(masterSecret string) (*Vault, error) {
	if !ValidMasterSecret(masterSecret) {
		return nil, ErrMasterSecretTooShort
	}

	key, err := scrypt.Key([]byte(masterSecret), []byte(scryptSalt), scryptN, scryptR, scryptP, aes.KeySize)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeriveKey, err)
	}

	return &Vault{key: key}, nil
}

func (v *Vault) Encrypt(plainText string) (string, error) {
	sealed, err := aes.Seal([]byte(plainText), v.key)

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncrypt, err)
	}

	return strings.Join([]string{
		hex.EncodeToString(sealed.Nonce),
		hex.EncodeToString(sealed.Tag),
		hex.EncodeToString(sealed.Ciphertext),
	}, tokenDivider), nil
}

func (v *Vault) Decrypt(token string) (string, error) {
	fields := strings.Split(token, tokenDivider)

	if len(fields) != tokenFields {
		return "", fmt.Errorf("%w: %w", ErrIntegrity, ErrMalformedToken)
	}

	decoded := make([][]byte, tokenFields)

	for i, field := range fields {
		b, err := hex.DecodeString(field)

		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIntegrity, ErrInvalidHexEncoding)
		}

		decoded[i] = b
	}

	plainText, err := aes.Open(&aes.Sealed{
		Nonce:      decoded[0],
		Tag:        decoded[1],
		Ciphertext: decoded[2],
	}, v.key)

	if err != nil {
		if errors.Is(err, aes.ErrInvalidKeySize) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	return string(plainText), nil
}

// EncryptOptional maps a nil secret to a nil token.
func (v *Vault) EncryptOptional(plainText *string) (*string, error) {
	if plainText == nil {
		return nil, nil
	}

	token, err := v.Encrypt(*plainText)

	if err != nil {
		return nil, err
	}

	return &token, nil
}

func (v *Vault) DecryptOptional(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}

	plainText, err := v.Decrypt(*token)

	if err != nil {
		return nil, err
	}

	return &plainText, nil
}
