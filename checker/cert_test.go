package checker

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"domain-expiry/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// selfSigned returns a certificate valid for example.com and 127.0.0.1.
func selfSigned(t *testing.T, notAfter time.Time) (tls.Certificate, *x509.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "example.com"},
		NotBefore:             testNow.Add(-24 * time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"example.com"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, leaf
}

// serveTLS accepts connections and completes the handshake until the test ends.
func serveTLS(t *testing.T, cert tls.Certificate) int {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = conn.(*tls.Conn).Handshake()
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func testCertProber(port int, leaf *x509.Certificate) *CertProber {
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return &CertProber{
		Port:     port,
		Timeout:  2 * time.Second,
		RootCAs:  pool,
		Resolver: StaticResolver{"example.com": "127.0.0.1", "wrong.example.org": "127.0.0.1"},
		Now:      func() time.Time { return testNow },
	}
}

func TestCertProbe(t *testing.T) {
	notAfter := testNow.Add(100*24*time.Hour + 3*time.Hour)
	cert, leaf := selfSigned(t, notAfter)
	p := testCertProber(serveTLS(t, cert), leaf)

	e := p.Probe(context.Background(), "example.com")
	require.True(t, e.OK(), "%v", e.Err)
	days, ok := e.DaysLeft()
	require.True(t, ok)
	assert.Equal(t, 100, days)
	assert.True(t, e.At.Equal(notAfter))
	assert.Equal(t, "Apr 11 03:00:00 2026 GMT", e.Text)
}

func TestCertProbeByIP(t *testing.T) {
	cert, leaf := selfSigned(t, testNow.Add(10*24*time.Hour))
	p := testCertProber(serveTLS(t, cert), leaf)
	p.Resolver = nil

	e := p.Probe(context.Background(), "127.0.0.1")
	require.True(t, e.OK(), "%v", e.Err)
	days, _ := e.DaysLeft()
	assert.Equal(t, 10, days)
}

func TestCertProbeHostnameMismatch(t *testing.T) {
	cert, leaf := selfSigned(t, testNow.Add(100*24*time.Hour))
	p := testCertProber(serveTLS(t, cert), leaf)

	e := p.Probe(context.Background(), "wrong.example.org")
	assert.False(t, e.OK())
	assert.True(t, e.At.IsZero())
	_, ok := e.DaysLeft()
	assert.False(t, ok)
	kind, ok := model.KindOf(e.Err)
	require.True(t, ok)
	assert.Equal(t, model.ProtocolError, kind)
}

func TestCertProbeUntrusted(t *testing.T) {
	cert, _ := selfSigned(t, testNow.Add(100*24*time.Hour))
	_, other := selfSigned(t, testNow.Add(100*24*time.Hour))
	p := testCertProber(serveTLS(t, cert), other)

	e := p.Probe(context.Background(), "example.com")
	assert.False(t, e.OK())
	kind, _ := model.KindOf(e.Err)
	assert.Equal(t, model.ProtocolError, kind)
}

func TestCertProbeExpired(t *testing.T) {
	cert, leaf := selfSigned(t, testNow.Add(-time.Hour))
	p := testCertProber(serveTLS(t, cert), leaf)

	e := p.Probe(context.Background(), "example.com")
	assert.False(t, e.OK())
}

func TestCertProbeUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, leaf := selfSigned(t, testNow.Add(time.Hour))
	p := testCertProber(port, leaf)

	e := p.Probe(context.Background(), "example.com")
	assert.False(t, e.OK())
	kind, _ := model.KindOf(e.Err)
	assert.Equal(t, model.NetworkError, kind)
}

func TestCertProbeHandshakeTimeout(t *testing.T) {
	// accepts TCP but never speaks TLS
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	_, leaf := selfSigned(t, testNow.Add(time.Hour))
	p := testCertProber(ln.Addr().(*net.TCPAddr).Port, leaf)
	p.Timeout = 200 * time.Millisecond

	start := time.Now()
	e := p.Probe(context.Background(), "example.com")
	assert.False(t, e.OK())
	assert.Less(t, time.Since(start), 2*time.Second)
	kind, _ := model.KindOf(e.Err)
	assert.Equal(t, model.NetworkError, kind)
}

func TestNewCertProberMissingBundle(t *testing.T) {
	p := NewCertProber(filepath.Join(t.TempDir(), "missing.crt"), time.Second)
	e := p.Probe(context.Background(), "example.com")
	assert.False(t, e.OK())
	assert.True(t, errors.Is(e.Err, model.ErrTrustStore))
}

func TestLoadCertPool(t *testing.T) {
	_, leaf := selfSigned(t, testNow.Add(time.Hour))
	dir := t.TempDir()

	good := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(good, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw}), 0600))
	pool, err := LoadCertPool(good)
	require.NoError(t, err)
	assert.NotNil(t, pool)

	bad := filepath.Join(dir, "empty.crt")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0600))
	_, err = LoadCertPool(bad)
	assert.True(t, errors.Is(err, model.ErrTrustStore))
}

func TestNewCertProberDefaults(t *testing.T) {
	p := NewCertProber("", 0)
	assert.Nil(t, p.RootCAs)
	assert.Equal(t, model.HTTPSPort, p.Port)
}
