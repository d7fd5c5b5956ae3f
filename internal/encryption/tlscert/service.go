package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	bundleFileName = "bundle.json"
	caFileName     = "ca.pem"
)

var (
	ErrIncompleteBundle = errors.New("server key, cert or root CA cert is empty")
	ErrInvalidCACert    = errors.New("no CA certificate found in PEM data")
)

type Options struct {
	CommonName string
	Expiry     time.Duration
	// Hosts are the DNS names and IP addresses the server certificate is valid for.
	Hosts []string
}

type PEMBundle struct {
	CertPEM string `json:"cert_pem"`
	KeyPEM  string `json:"key_pem,omitempty"`
}

// Bundle is a private root CA and the server certificate it signed. Chat
// clients only need the CA certificate to verify the server.
type Bundle struct {
	RootCA    PEMBundle `json:"root_ca"`
	Server    PEMBundle `json:"server"`
	Generated time.Time `json:"generated_at"`
}

// Generate creates a root CA and a server certificate signed by it
func Generate(serverOpt Options, rootExpiry time.Duration) (*Bundle, error) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	if err != nil {
		return nil, err
	}

	now := time.Now()

	rootTpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "shellpilot Root CA",
		},
		NotBefore:             now,
		NotAfter:              now.Add(rootExpiry),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	rootCert, err := x509.CreateCertificate(rand.Reader, rootTpl, rootTpl, &rootKey.PublicKey, rootKey)

	if err != nil {
		return nil, err
	}

	rootCertParsed, err := x509.ParseCertificate(rootCert)

	if err != nil {
		return nil, err
	}

	rootKeyPEM, err := encodeKey(rootKey)

	if err != nil {
		return nil, err
	}

	serverCert, serverKey, err := createServerCert(serverOpt, rootCertParsed, rootKey)

	if err != nil {
		return nil, err
	}

	return &Bundle{
		RootCA: PEMBundle{
			CertPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootCert})),
			KeyPEM:  string(rootKeyPEM),
		},
		Server: PEMBundle{
			CertPEM: string(serverCert),
			KeyPEM:  string(serverKey),
		},
		Generated: now,
	}, nil
}

func createServerCert(opt Options, caCert *x509.Certificate, caKey *ecdsa.PrivateKey) ([]byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject: pkix.Name{
			CommonName: opt.CommonName,
		},
		NotBefore:   now,
		NotAfter:    now.Add(opt.Expiry),
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage:    x509.KeyUsageDigitalSignature,
	}

	for _, host := range opt.Hosts {
		if ip := net.ParseIP(host); ip != nil {
			tpl.IPAddresses = append(tpl.IPAddresses, ip)
		} else if host != "" {
			tpl.DNSNames = append(tpl.DNSNames, host)
		}
	}

	cert, err := x509.CreateCertificate(rand.Reader, tpl, caCert, &key.PublicKey, caKey)

	if err != nil {
		return nil, nil, err
	}

	keyPEM, err := encodeKey(key)

	if err != nil {
		return nil, nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert}), keyPEM, nil
}

func encodeKey(key *ecdsa.PrivateKey) ([]byte, error) {
	keyBytes, err := x509.MarshalECPrivateKey(key)

	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}), nil
}

// LoadOrGenerate reads the bundle stored in dir, generating and storing a new
// one when there is none or its server certificate has expired. The second
// return value reports whether a new bundle was written.
func LoadOrGenerate(dir string, serverOpt Options, rootExpiry time.Duration) (*Bundle, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, bundleFileName))

	if err == nil {
		var bundle Bundle

		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, false, fmt.Errorf("failed to parse %s: %w", bundleFileName, err)
		}

		if bundle.valid(time.Now()) {
			return &bundle, false, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	bundle, err := Generate(serverOpt, rootExpiry)

	if err != nil {
		return nil, false, err
	}

	if err := bundle.save(dir); err != nil {
		return nil, false, err
	}

	return bundle, true, nil
}

func (b *Bundle) valid(now time.Time) bool {
	block, _ := pem.Decode([]byte(b.Server.CertPEM))

	if block == nil {
		return false
	}

	cert, err := x509.ParseCertificate(block.Bytes)

	return err == nil && now.Before(cert.NotAfter)
}

func (b *Bundle) save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(b, "", "  ")

	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, bundleFileName), data, 0600); err != nil {
		return err
	}

	return os.WriteFile(CAFile(dir), []byte(b.RootCA.CertPEM), 0644)
}

// CAFile is where the CA certificate is written for distribution to clients.
func CAFile(dir string) string {
	return filepath.Join(dir, caFileName)
}

func (b *Bundle) ServerTLSConfig() (*tls.Config, error) {
	if b.Server.KeyPEM == "" || b.Server.CertPEM == "" || b.RootCA.CertPEM == "" {
		return nil, ErrIncompleteBundle
	}

	serverCert, err := tls.X509KeyPair([]byte(b.Server.CertPEM), []byte(b.Server.KeyPEM))

	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLSConfig trusts only the CA certificates in caPEM.
func ClientTLSConfig(caPEM []byte) (*tls.Config, error) {
	rootCAPool := x509.NewCertPool()

	if !rootCAPool.AppendCertsFromPEM(caPEM) {
		return nil, ErrInvalidCACert
	}

	return &tls.Config{
		RootCAs:    rootCAPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
