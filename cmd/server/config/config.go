package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shellpilot/internal/encryption"
	"shellpilot/internal/logger"
	"shellpilot/internal/risk"

	"github.com/joho/godotenv"
)

var ErrConfig = errors.New("invalid configuration")

func init() {
	envFiles := []string{
		".env",
	}

	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("Error loading %s: %v", envFile, err)
			}
		}
	}

	Config = Load()
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)

	if value == "" {
		return defaultValue
	}

	return value
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	value := GetEnv(key, "")

	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)

	if err != nil {
		logger.Warn("Ignoring invalid %s=%q: %v", key, value, err)
		return defaultValue
	}

	return d
}

func envFloat(key string, defaultValue float64) float64 {
	value := GetEnv(key, "")

	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)

	if err != nil {
		logger.Warn("Ignoring invalid %s=%q: %v", key, value, err)
		return defaultValue
	}

	return f
}

func envInt(key string, defaultValue int) int {
	value := GetEnv(key, "")

	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)

	if err != nil {
		logger.Warn("Ignoring invalid %s=%q: %v", key, value, err)
		return defaultValue
	}

	return i
}

func envBool(key string, defaultValue bool) bool {
	value := GetEnv(key, "")

	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)

	if err != nil {
		logger.Warn("Ignoring invalid %s=%q: %v", key, value, err)
		return defaultValue
	}

	return b
}

func envList(key string) []string {
	var out []string

	for _, item := range strings.Split(GetEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func envListOr(key string, defaultValue []string) []string {
	if out := envList(key); len(out) > 0 {
		return out
	}

	return defaultValue
}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("Could not determine home directory: %v", err)
		return ""
	}
	return homeDir
}

func getDefaultDatabasePath(fallback string, profile string) string {
	homeDir := getHomeDir()
	if homeDir == "" {
		return fallback
	}
	return filepath.Join(homeDir, ".shellpilot", profile, "shellpilot.db")
}

func getDefaultTLSDir(fallback string, profile string) string {
	homeDir := getHomeDir()
	if homeDir == "" {
		return fallback
	}
	return filepath.Join(homeDir, ".shellpilot", profile, "tls")
}

type Configuration struct {
	Profile      string
	DatabasePath string

	ListenAddr      string
	AllowedOrigin   string
	ChannelTokens   []string
	EventRate       float64
	EventBurst      int
	ShutdownTimeout time.Duration

	// Serve over HTTPS with a certificate signed by a locally generated CA.
	TLSEnabled bool
	TLSDir     string
	TLSHosts   []string

	// Secret used to derive the credential encryption key; at least 32 characters.
	EncryptionKey string

	PlannerURL     string
	PlannerAPIKey  string
	PlannerTimeout time.Duration

	RiskPolicyPath        string
	ConfirmationThreshold string

	SSHConnectTimeout    time.Duration
	SSHTestTimeout       time.Duration
	SSHKeepAliveInterval time.Duration
	CommandTimeout       time.Duration
	KnownHostsPath       string

	// Used by the chat command to reach a running server.
	ServerURL  string
	ChatToken  string
	CACertPath string

	LogLevel  string
	LogFormat string
}

var Config *Configuration

// Load reads the configuration from the environment.
func Load() *Configuration {
	profile := GetEnv("SHELLPILOT_PROFILE", "default")

	return &Configuration{
		Profile:      profile,
		DatabasePath: GetEnv("DATABASE_PATH", getDefaultDatabasePath("/app/shellpilot/shellpilot.db", profile)),

		ListenAddr:      GetEnv("LISTEN_ADDR", ":4000"),
		AllowedOrigin:   GetEnv("CORS_ORIGIN", "*"),
		ChannelTokens:   envList("CHANNEL_TOKENS"),
		EventRate:       envFloat("EVENT_RATE", 5),
		EventBurst:      envInt("EVENT_BURST", 20),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		TLSEnabled: envBool("TLS_ENABLED", false),
		TLSDir:     GetEnv("TLS_DIR", getDefaultTLSDir("/app/shellpilot/tls", profile)),
		TLSHosts:   envListOr("TLS_HOSTS", []string{"localhost", "127.0.0.1"}),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		PlannerURL:     GetEnv("PLANNER_URL", "http://localhost:8000"),
		PlannerAPIKey:  os.Getenv("PLANNER_API_KEY"),
		PlannerTimeout: envDuration("PLANNER_TIMEOUT", 60*time.Second),

		RiskPolicyPath:        os.Getenv("RISK_POLICY_PATH"),
		ConfirmationThreshold: GetEnv("CONFIRMATION_THRESHOLD", "LOW"),

		SSHConnectTimeout:    envDuration("SSH_CONNECT_TIMEOUT", 30*time.Second),
		SSHTestTimeout:       envDuration("SSH_TEST_TIMEOUT", 10*time.Second),
		SSHKeepAliveInterval: envDuration("SSH_KEEPALIVE_INTERVAL", 10*time.Second),
		CommandTimeout:       envDuration("COMMAND_TIMEOUT", 15*time.Minute),
		KnownHostsPath:       os.Getenv("KNOWN_HOSTS_PATH"),

		ServerURL:  GetEnv("SHELLPILOT_URL", "ws://localhost:4000/ws/chat"),
		ChatToken:  os.Getenv("SHELLPILOT_TOKEN"),
		CACertPath: os.Getenv("SHELLPILOT_CA_CERT"),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "console"),
	}
}

// Validate checks the settings the serve command cannot start without.
func (c *Configuration) Validate() error {
	if !encryption.ValidMasterSecret(c.EncryptionKey) {
		return fmt.Errorf("%w: %w", ErrConfig, encryption.ErrMasterSecretTooShort)
	}

	if _, err := risk.ParseLevel(c.ConfirmationThreshold); err != nil {
		return fmt.Errorf("%w: CONFIRMATION_THRESHOLD: %w", ErrConfig, err)
	}

	if c.EventRate <= 0 || c.EventBurst <= 0 {
		return fmt.Errorf("%w: EVENT_RATE and EVENT_BURST must be positive", ErrConfig)
	}

	if c.CommandTimeout < 0 {
		return fmt.Errorf("%w: COMMAND_TIMEOUT must not be negative", ErrConfig)
	}

	if c.TLSEnabled && len(c.TLSHosts) == 0 {
		return fmt.Errorf("%w: TLS_HOSTS must list at least one host when TLS is enabled", ErrConfig)
	}

	if c.PlannerURL == "" {
		return fmt.Errorf("%w: PLANNER_URL is required", ErrConfig)
	}

	return nil
}
