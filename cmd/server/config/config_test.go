package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"shellpilot/internal/encryption"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("x", 32))
	t.Setenv("CHANNEL_TOKENS", "alpha, beta ,,")
	t.Setenv("CONFIRMATION_THRESHOLD", "medium")
	t.Setenv("COMMAND_TIMEOUT", "90s")
	t.Setenv("EVENT_RATE", "2.5")
	t.Setenv("DATABASE_PATH", "/tmp/shellpilot-test.db")
}

func TestLoadReadsEnvironment(t *testing.T) {
	validEnv(t)

	c := Load()

	assert.Equal(t, []string{"alpha", "beta"}, c.ChannelTokens)
	assert.Equal(t, 90*time.Second, c.CommandTimeout)
	assert.Equal(t, 2.5, c.EventRate)
	assert.Equal(t, 20, c.EventBurst)
	assert.Equal(t, "/tmp/shellpilot-test.db", c.DatabasePath)
	assert.Equal(t, 30*time.Second, c.SSHConnectTimeout)
	require.NoError(t, c.Validate())
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	validEnv(t)
	t.Setenv("COMMAND_TIMEOUT", "forever")
	t.Setenv("EVENT_BURST", "many")

	c := Load()

	assert.Equal(t, 15*time.Minute, c.CommandTimeout)
	assert.Equal(t, 20, c.EventBurst)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"short encryption key", map[string]string{"ENCRYPTION_KEY": "short"}, encryption.ErrMasterSecretTooShort},
		{"short multibyte encryption key", map[string]string{"ENCRYPTION_KEY": strings.Repeat("é", 17)}, encryption.ErrMasterSecretTooShort},
		{"unknown threshold", map[string]string{"CONFIRMATION_THRESHOLD": "EXTREME"}, ErrConfig},
		{"negative command timeout", map[string]string{"COMMAND_TIMEOUT": "-1s"}, ErrConfig},
		{"zero event rate", map[string]string{"EVENT_RATE": "0"}, ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()

			assert.True(t, errors.Is(err, tt.want), err)
			assert.True(t, errors.Is(err, ErrConfig), err)
		})
	}
}

func TestDefaultDatabasePathUsesProfile(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("SHELLPILOT_PROFILE", "staging")

	c := Load()

	assert.Contains(t, c.DatabasePath, "staging")
	assert.True(t, strings.HasSuffix(c.DatabasePath, "shellpilot.db"))
}

func TestTLSSettings(t *testing.T) {
	validEnv(t)
	t.Setenv("TLS_HOSTS", "")
	t.Setenv("TLS_ENABLED", "yes-please")

	c := Load()

	assert.False(t, c.TLSEnabled)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, c.TLSHosts)

	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_HOSTS", "shellpilot.internal, 10.0.0.2")
	t.Setenv("SHELLPILOT_PROFILE", "staging")
	t.Setenv("TLS_DIR", "")

	c = Load()

	assert.True(t, c.TLSEnabled)
	assert.Equal(t, []string{"shellpilot.internal", "10.0.0.2"}, c.TLSHosts)
	assert.True(t, strings.HasSuffix(c.TLSDir, "staging/tls") || c.TLSDir == "/app/shellpilot/tls", c.TLSDir)
	require.NoError(t, c.Validate())
}
