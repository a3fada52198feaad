package cli

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"

	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/output"
	"github.com/ksyq12/certglue/internal/ssl"
)

// captureOutput redirects user-facing output into a buffer and silences logs
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	output.SetWriter(&buf)
	logger.SetOutput(io.Discard)
	t.Cleanup(func() {
		output.SetWriter(nil)
		logger.SetOutput(nil)
	})
	return &buf
}

func decodeJSON(t *testing.T, buf *bytes.Buffer, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
}

// writeCertificate installs a self-signed chain and key valid until notAfter
// and backdates both files by an hour.
func writeCertificate(t *testing.T, paths ssl.CertPaths, notAfter time.Time) {
	t.Helper()

	key, err := certcrypto.GeneratePrivateKey(certcrypto.EC256)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	signer := key.(crypto.Signer)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		Issuer:       pkix.Name{CommonName: "example.com"},
		DNSNames:     []string{"example.com"},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, signer.Public(), signer)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	if err := os.MkdirAll(paths.Dir, 0755); err != nil {
		t.Fatalf("failed to create live dir: %v", err)
	}
	chain := certcrypto.PEMEncode(certcrypto.DERCertificateBytes(der))
	if err := os.WriteFile(paths.FullChain, chain, 0644); err != nil {
		t.Fatalf("failed to write chain: %v", err)
	}
	if err := os.WriteFile(paths.PrivKey, certcrypto.PEMEncode(key), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	old := time.Now().Add(-time.Hour)
	for _, p := range []string{paths.FullChain, paths.PrivKey} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("failed to backdate %s: %v", p, err)
		}
	}
}

// fakeCertbot makes the mock executor act like certbot: when issue is set it
// rewrites the chain with a fresh mtime, and exitCode is returned as status.
func fakeCertbot(t *testing.T, mock *executor.MockExecutor, paths ssl.CertPaths, issue bool, exitCode int) {
	t.Helper()
	mock.ExecuteFunc = func(name string, args ...string) ([]byte, error) {
		if name != "certbot" {
			return nil, nil
		}
		if exitCode != 0 {
			return []byte("Saving debug log\nChallenge failed for domain example.com\n"), &executor.ExitError{Code: exitCode}
		}
		if issue {
			writeCertificate(t, paths, time.Now().Add(90*24*time.Hour))
			future := time.Now().Add(time.Hour)
			if err := os.Chtimes(paths.FullChain, future, future); err != nil {
				t.Fatalf("failed to touch chain: %v", err)
			}
			return []byte("Successfully received certificate.\n"), nil
		}
		return []byte("Certificate not yet due for renewal; no action taken.\n"), nil
	}
}

func certbotCalls(mock *executor.MockExecutor) []executor.CommandCall {
	var calls []executor.CommandCall
	for _, c := range mock.Calls {
		if c.Name == "certbot" {
			calls = append(calls, c)
		}
	}
	return calls
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
