package tlscert

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverOpts = Options{
	CommonName: "localhost",
	Expiry:     time.Hour,
	Hosts:      []string{"localhost", "127.0.0.1"},
}

func TestHTTPSCommunication(t *testing.T) {
	bundle, err := Generate(serverOpts, time.Hour)
	require.NoError(t, err)

	serverTLS, err := bundle.ServerTLSConfig()
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello over %x", r.TLS.Version)
	}))
	ts.TLS = serverTLS
	ts.StartTLS()
	defer ts.Close()

	clientTLS, err := ClientTLSConfig([]byte(bundle.RootCA.CertPEM))
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}
	resp, err := client.Get(ts.URL)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "hello over")

	// a client trusting a different CA refuses the server
	other, err := Generate(serverOpts, time.Hour)
	require.NoError(t, err)

	otherTLS, err := ClientTLSConfig([]byte(other.RootCA.CertPEM))
	require.NoError(t, err)

	_, err = (&http.Client{Transport: &http.Transport{TLSClientConfig: otherTLS}}).Get(ts.URL)
	assert.Error(t, err)
}

func TestLoadOrGenerate(t *testing.T) {
	dir := t.TempDir()

	first, created, err := LoadOrGenerate(dir, serverOpts, time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	caPEM, err := os.ReadFile(CAFile(dir))
	require.NoError(t, err)
	assert.Equal(t, first.RootCA.CertPEM, string(caPEM))

	second, created, err := LoadOrGenerate(dir, serverOpts, time.Hour)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Server.CertPEM, second.Server.CertPEM)
}

func TestLoadOrGenerateReplacesUnusableBundle(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, (&Bundle{Server: PEMBundle{CertPEM: "garbage"}}).save(dir))

	bundle, created, err := LoadOrGenerate(dir, serverOpts, time.Hour)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, bundle.valid(time.Now()))
	assert.False(t, bundle.valid(time.Now().Add(2*time.Hour)))
}

func TestConfigErrors(t *testing.T) {
	_, err := ClientTLSConfig([]byte("not a certificate"))
	assert.ErrorIs(t, err, ErrInvalidCACert)

	_, err = (&Bundle{}).ServerTLSConfig()
	assert.ErrorIs(t, err, ErrIncompleteBundle)
}
