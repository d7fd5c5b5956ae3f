package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

const (
	testUser     = "deploy"
	testPassword = "hunter2"
	testHostname = "test-host"
)

type countingListener struct {
	net.Listener
	accepted atomic.Int32
}

func (l *countingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()

	if err == nil {
		l.accepted.Add(1)
	}

	return conn, err
}

// testServer is an in-process SSH server with a tiny command table:
//
//	hostname          prints testHostname
//	echo <text>       prints text
//	warn <text>       prints text on stderr
//	fail <code>       exits with code
//	sleep             blocks until the session is torn down
type testServer struct {
	host     string
	port     uint
	listener *countingListener

	mu       sync.Mutex
	commands []string
}

func newTestServer(t *testing.T, authorized gossh.PublicKey) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ts := &testServer{listener: &countingListener{Listener: ln}}

	server := &gliderssh.Server{
		Handler: ts.handle,
		PasswordHandler: func(ctx gliderssh.Context, password string) bool {
			return ctx.User() == testUser && password == testPassword
		},
	}

	if authorized != nil {
		server.PublicKeyHandler = func(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
			return gliderssh.KeysEqual(key, authorized)
		}
	}

	go func() {
		_ = server.Serve(ts.listener)
	}()

	t.Cleanup(func() {
		_ = server.Close()
	})

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ts.host = host
	ts.port = uint(port)

	return ts
}

func (ts *testServer) handle(s gliderssh.Session) {
	raw := strings.TrimSpace(s.RawCommand())

	ts.mu.Lock()
	ts.commands = append(ts.commands, raw)
	ts.mu.Unlock()

	name, arg, _ := strings.Cut(raw, " ")

	switch name {
	case "hostname":
		_, _ = io.WriteString(s, testHostname+"\r\n")
		_ = s.Exit(0)
	case "echo":
		_, _ = io.WriteString(s, arg+"\r\n")
		_ = s.Exit(0)
	case "warn":
		_, _ = io.WriteString(s.Stderr(), arg+"\n")
		_ = s.Exit(0)
	case "fail":
		code, _ := strconv.Atoi(arg)
		_, _ = io.WriteString(s.Stderr(), "failed\n")
		_ = s.Exit(code)
	case "sleep":
		select {
		case <-s.Context().Done():
		case <-time.After(5 * time.Second):
		}
		_ = s.Exit(0)
	default:
		_, _ = fmt.Fprintf(s.Stderr(), "%s: command not found\n", name)
		_ = s.Exit(127)
	}
}

func (ts *testServer) received() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return append([]string(nil), ts.commands...)
}

func (ts *testServer) connections() int {
	return int(ts.listener.accepted.Load())
}

func (ts *testServer) passwordCredentials() *Credentials {
	return &Credentials{
		Host:     ts.host,
		Port:     ts.port,
		Username: testUser,
		AuthType: AuthTypePassword,
		Password: testPassword,
	}
}

// generateKey returns a PEM-encoded ed25519 private key, optionally protected
// by passphrase, together with its public half.
func generateKey(t *testing.T, passphrase string) (string, gossh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block

	if passphrase == "" {
		block, err = gossh.MarshalPrivateKey(priv, "")
	} else {
		block, err = gossh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}

	require.NoError(t, err)

	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(block)), sshPub
}

func unusedPort(t *testing.T) uint {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return uint(port)
}
