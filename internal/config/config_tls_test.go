package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTLSMode(t *testing.T) {
	tests := []struct {
		name        string
		tls         TLSConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "disabled mode",
			tls:  TLSConfig{Mode: "disabled"},
		},
		{
			name: "server mode with files",
			tls: TLSConfig{
				Mode:     "server",
				CertFile: "/path/to/cert.pem",
				KeyFile:  "/path/to/key.pem",
			},
		},
		{
			name: "server mode with content",
			tls: TLSConfig{
				Mode:        "server",
				CertContent: "cert",
				KeyContent:  "key",
			},
		},
		{
			name:        "server mode missing key",
			tls:         TLSConfig{Mode: "server", CertFile: "/path/to/cert.pem"},
			expectError: true,
			errorMsg:    "TLS certificate and key are required",
		},
		{
			name: "server mode duplicate cert source",
			tls: TLSConfig{
				Mode:        "server",
				CertFile:    "/path/to/cert.pem",
				CertContent: "cert",
				KeyFile:     "/path/to/key.pem",
			},
			expectError: true,
			errorMsg:    "cannot specify both certFile and certContent",
		},
		{
			name:        "mutual mode is not supported",
			tls:         TLSConfig{Mode: "mutual"},
			expectError: true,
			errorMsg:    "invalid TLS mode: mutual",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTLSMode(tt.tls)

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTLSVersion(t *testing.T) {
	for _, version := range []string{"", "1.2", "1.3"} {
		assert.NoError(t, validateTLSVersion(TLSConfig{MinVersion: version}), version)
	}

	err := validateTLSVersion(TLSConfig{MinVersion: "1.1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid TLS minVersion")
}
