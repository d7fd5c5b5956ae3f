package ssh

type AuthType string

const (
	AuthTypePassword AuthType = "PASSWORD"
	AuthTypeKey      AuthType = "KEY"
)

// Credentials are decrypted host secrets. They are built transiently from a
// stored server record and never persisted in this form.
type Credentials struct {
	Host     string
	Port     uint
	Username string
	AuthType AuthType
	// Password authentication
	Password string
	// Key-based authentication
	PrivateKey string
	// Passphrase for private key (if encrypted)
	Passphrase string
}

type CommandResult struct {
	Command string `json:"command"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	// -1 when the command never produced an exit status (transport failure,
	// timeout, connection refused)
	ExitCode int  `json:"exitCode"`
	Success  bool `json:"success"`
}

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Output is one chunk of streamed command output.
type Output struct {
	Stream  Stream
	Content string
}

type TestResult struct {
	Success  bool
	Message  string
	Hostname string
}
