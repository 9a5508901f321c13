package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumerank/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestBuildTLSConfigFromContent(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)
	srv := &Server{TLSConfig: config.TLSConfig{
		Mode:        "server",
		CertContent: string(certPEM),
		KeyContent:  string(keyPEM),
		MinVersion:  "1.3",
	}}

	cfg, err := srv.buildTLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)
}

func TestBuildTLSConfigFromFiles(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

	srv := &Server{TLSConfig: config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}}
	httpServer := &http.Server{Addr: "127.0.0.1:0"}
	require.NoError(t, srv.configureTLS(httpServer))
	require.NotNil(t, httpServer.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), httpServer.TLSConfig.MinVersion)
}

func TestConfigureTLSErrors(t *testing.T) {
	srv := &Server{TLSConfig: config.TLSConfig{Mode: "server"}}
	err := srv.configureTLS(&http.Server{Addr: "127.0.0.1:0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate and key are required")

	srv.TLSConfig = config.TLSConfig{Mode: "server", CertContent: "not a cert", KeyContent: "not a key"}
	assert.Error(t, srv.configureTLS(&http.Server{}))

	srv.TLSConfig = config.TLSConfig{Mode: "disabled"}
	httpServer := &http.Server{}
	require.NoError(t, srv.configureTLS(httpServer))
	assert.Nil(t, httpServer.TLSConfig)
}
