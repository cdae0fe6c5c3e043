package tlsconf

import (
	"os"
	"path/filepath"
	"testing"

	"kvmux/internal/testsupport"
)

func writeCertAndKey(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	cert := testsupport.GenerateSelfSignedCert(t)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "server.crt")
	keyPath = filepath.Join(dir, "server.key")

	if err := os.WriteFile(certPath, testsupport.EncodeCertPEM(cert), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, testsupport.EncodeKeyPEM(t, cert), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestServerTLSConfigLoadsCertificate(t *testing.T) {
	certPath, keyPath := writeCertAndKey(t)

	cfg, err := ServerTLSConfig(ServerOptions{CertFile: certPath, KeyFile: keyPath})
	if err != nil {
		t.Fatalf("ServerTLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
}

func TestServerTLSConfigMissingFileErrors(t *testing.T) {
	_, err := ServerTLSConfig(ServerOptions{CertFile: "does-not-exist.crt", KeyFile: "does-not-exist.key"})
	if err == nil {
		t.Fatal("expected error for missing certificate file")
	}
}
