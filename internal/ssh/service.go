package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"shellpilot/internal/logger"

	"github.com/melbahja/goph"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPort              = 22
	DefaultConnectTimeout    = 30 * time.Second
	DefaultTestTimeout       = 10 * time.Second
	DefaultKeepAliveInterval = 10 * time.Second

	connectionCheck  = "hostname"
	keepAliveRequest = "keepalive@openssh.com"
)

var ptyModes = ssh.TerminalModes{
	ssh.ECHO:          0,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

type session struct {
	client *goph.Client
	done   chan struct{}
}

func (s *session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Manager owns at most one live SSH connection per server id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	locks    *keyedMutex

	connectTimeout    time.Duration
	testTimeout       time.Duration
	keepAliveInterval time.Duration
	commandTimeout    time.Duration
	hostKeyCallback   ssh.HostKeyCallback
}

type Option func(*Manager)

func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) { m.connectTimeout = d }
}

func WithTestTimeout(d time.Duration) Option {
	return func(m *Manager) { m.testTimeout = d }
}

// WithKeepAliveInterval sets how often keep-alive requests are sent on cached
// connections. Zero disables keep-alives.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(m *Manager) { m.keepAliveInterval = d }
}

// WithCommandTimeout bounds a single remote command. Zero means no limit.
func WithCommandTimeout(d time.Duration) Option {
	return func(m *Manager) { m.commandTimeout = d }
}

func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(m *Manager) { m.hostKeyCallback = cb }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:          make(map[string]*session),
		locks:             newKeyedMutex(),
		connectTimeout:    DefaultConnectTimeout,
		testTimeout:       DefaultTestTimeout,
		keepAliveInterval: DefaultKeepAliveInterval,
		// auto-accept host keys unless a known_hosts file is configured
		hostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func buildAuth(creds *Credentials) (goph.Auth, error) {
	if creds.AuthType == AuthTypePassword {
		return goph.Password(creds.Password), nil
	}

	if creds.PrivateKey == "" {
		return nil, ErrNoAuthMethodProvided
	}

	auth, err := goph.RawKey(creds.PrivateKey, creds.Passphrase)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateAuth, err)
	}

	return auth, nil
}

func (m *Manager) buildConfig(creds *Credentials, timeout time.Duration) (*goph.Config, error) {
	auth, err := buildAuth(creds)

	if err != nil {
		return nil, err
	}

	port := creds.Port

	if port == 0 {
		port = DefaultPort
	}

	return &goph.Config{
		Auth:     auth,
		User:     creds.Username,
		Addr:     creds.Host,
		Port:     port,
		Timeout:  timeout,
		Callback: m.hostKeyCallback,
	}, nil
}

// dial opens a new client. The timeout covers both the TCP connect and the SSH
// handshake.
func (m *Manager) dial(ctx context.Context, creds *Credentials, timeout time.Duration) (*goph.Client, error) {
	if creds == nil {
		return nil, ErrNoAuthMethodProvided
	}

	config, err := m.buildConfig(creds, timeout)

	if err != nil {
		return nil, err
	}

	hostPort := net.JoinHostPort(config.Addr, fmt.Sprintf("%d", config.Port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateSSHClient, err)
	}

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, hostPort, &ssh.ClientConfig{
		User:            config.User,
		Auth:            config.Auth,
		HostKeyCallback: config.Callback,
		Timeout:         timeout,
	})

	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateSSHClient, err)
	}

	_ = conn.SetDeadline(time.Time{})

	return &goph.Client{Client: ssh.NewClient(sshConn, chans, reqs), Config: config}, nil
}

func (m *Manager) newSession(client *goph.Client) *session {
	s := &session{client: client, done: make(chan struct{})}

	go func() {
		_ = client.Wait()
		close(s.done)
	}()

	if m.keepAliveInterval > 0 {
		go m.keepAlive(s)
	}

	return s
}

func (m *Manager) keepAlive(s *session) {
	ticker := time.NewTicker(m.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if _, _, err := s.client.SendRequest(keepAliveRequest, true, nil); err != nil {
				logger.Warn("SSH keep-alive to %s failed: %v", s.client.Config.Addr, err)
				_ = s.client.Close()
				return
			}
		}
	}
}

// TestConnection opens an ephemeral connection, runs `hostname` and
// closes the connection on every path. The manager state is not touched.
func (m *Manager) TestConnection(ctx context.Context, creds *Credentials, timeout time.Duration) TestResult {
	if timeout <= 0 {
		timeout = m.testTimeout
	}

	client, err := m.dial(ctx, creds, timeout)

	if err != nil {
		logger.Error("SSH connection test failed: %v", err)
		return TestResult{Success: false, Message: err.Error()}
	}

	defer client.Close()

	out, err := client.Run(connectionCheck)

	if err != nil {
		logger.Error("SSH connection test failed: %v", err)
		return TestResult{Success: false, Message: fmt.Sprintf("%v: %v", ErrFailedToTestSSHConnection, err)}
	}

	hostname := strings.TrimSpace(string(out))

	return TestResult{
		Success:  true,
		Message:  fmt.Sprintf("Successfully connected to %s", hostname),
		Hostname: hostname,
	}
}

// Connect returns the cached live connection for serverID or opens a new one.
func (m *Manager) Connect(ctx context.Context, serverID string, creds *Credentials) (*goph.Client, error) {
	unlock := m.locks.Lock(serverID)
	defer unlock()

	return m.connectLocked(ctx, serverID, creds)
}

func (m *Manager) connectLocked(ctx context.Context, serverID string, creds *Credentials) (*goph.Client, error) {
	m.mu.Lock()
	existing, ok := m.sessions[serverID]
	m.mu.Unlock()

	if ok {
		if existing.alive() {
			return existing.client, nil
		}

		m.evict(serverID, existing)
	}

	host := ""
	if creds != nil {
		host = creds.Host
	}

	client, err := m.dial(ctx, creds, m.connectTimeout)

	if err != nil {
		logger.Error("Failed to connect to %s: %v", host, err)
		return nil, &ConnectionError{Host: host, Err: err}
	}

	m.mu.Lock()
	m.sessions[serverID] = m.newSession(client)
	m.mu.Unlock()

	logger.Info("SSH connected to %s (server %s)", host, serverID)

	return client, nil
}

func (m *Manager) evict(serverID string, s *session) {
	m.mu.Lock()
	if m.sessions[serverID] == s {
		delete(m.sessions, serverID)
	}
	m.mu.Unlock()

	_ = s.client.Close()
}

// Disconnect closes and forgets the connection for serverID, if any.
func (m *Manager) Disconnect(serverID string) {
	unlock := m.locks.Lock(serverID)
	defer unlock()

	m.mu.Lock()
	s, ok := m.sessions[serverID]
	delete(m.sessions, serverID)
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := s.client.Close(); err != nil && s.alive() {
		logger.Warn("Closing SSH connection for server %s: %v", serverID, err)
	}

	logger.Info("SSH disconnected from server %s", serverID)
}

// DisconnectAll closes every cached connection. It is meant for process
// shutdown and does not wait for per-server locks.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	var g errgroup.Group

	for serverID, s := range sessions {
		g.Go(func() error {
			if err := s.client.Close(); err != nil && s.alive() {
				logger.Warn("Closing SSH connection for server %s: %v", serverID, err)
			}
			return nil
		})
	}

	_ = g.Wait()

	logger.Info("All SSH connections closed")
}

func (m *Manager) IsConnected(serverID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[serverID]
	m.mu.Unlock()

	return ok && s.alive()
}

// ExecuteCommand runs one command with a pseudo terminal, connecting lazily.
// Failures never surface as errors: they are reported in the result with
// ExitCode -1 so the caller can inspect them like any other outcome.
func (m *Manager) ExecuteCommand(ctx context.Context, serverID string, command string, creds *Credentials) CommandResult {
	unlock := m.locks.Lock(serverID)
	defer unlock()

	return m.executeLocked(ctx, serverID, command, creds)
}

// executeLocked expects the caller to hold the lock for serverID.
func (m *Manager) executeLocked(ctx context.Context, serverID string, command string, creds *Credentials) CommandResult {
	client, err := m.connectLocked(ctx, serverID, creds)

	if err != nil {
		return failedResult(command, "", err)
	}

	result := m.run(client, command)

	if !result.Success {
		logger.Debug("Command %q on server %s exited with %d", command, serverID, result.ExitCode)
	}

	return result
}

func (m *Manager) run(client *goph.Client, command string) CommandResult {
	cmd, err := client.Command(command)

	if err != nil {
		return failedResult(command, "", fmt.Errorf("%w: %v", ErrFailedToCreateSession, err))
	}

	defer cmd.Close()

	if err := cmd.RequestPty("xterm", 40, 200, ptyModes); err != nil {
		return failedResult(command, "", fmt.Errorf("%w: %v", ErrFailedToRequestPty, err))
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Session.Start(command); err != nil {
		return failedResult(command, "", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var timeout <-chan time.Time

	if m.commandTimeout > 0 {
		timer := time.NewTimer(m.commandTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err = <-waitErr:
	case <-timeout:
		_ = cmd.Signal(ssh.SIGKILL)
		_ = cmd.Close()
		<-waitErr
		err = fmt.Errorf("%w after %s", ErrCommandTimedOut, m.commandTimeout)
	}

	result := CommandResult{
		Command: command,
		Stdout:  normalize(stdout.String()),
		Stderr:  normalize(stderr.String()),
	}

	var exitErr *ssh.ExitError

	switch {
	case err == nil:
		result.ExitCode = 0
		result.Success = true
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
	default:
		return failedResult(command, result.Stderr, err)
	}

	return result
}

func failedResult(command string, stderr string, err error) CommandResult {
	if stderr != "" {
		stderr = stderr + "\n" + err.Error()
	} else {
		stderr = err.Error()
	}

	return CommandResult{
		Command:  command,
		Stderr:   stderr,
		ExitCode: -1,
		Success:  false,
	}
}

// pty output uses CRLF line endings
func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
