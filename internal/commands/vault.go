package commands

import (
	"fmt"
	"io"

	"shellpilot/internal/encryption"
)

// VaultEncrypt prints the vault token for a secret, for seeding credentials
// by hand.
func (s *Service) VaultEncrypt(plainText string, stdOut io.Writer, errOut io.Writer) {
	vault, err := encryption.NewVault(s.Config.EncryptionKey)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	token, err := vault.Encrypt(plainText)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "%s\n", token)
}

func (s *Service) VaultDecrypt(token string, stdOut io.Writer, errOut io.Writer) {
	vault, err := encryption.NewVault(s.Config.EncryptionKey)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	plainText, err := vault.Decrypt(token)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "%s\n", plainText)
}
