package cli

import (
	"bytes"
	"os"
	"testing"
	"time"

	glueerrors "github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/ssl"
)

func TestRunBundle(t *testing.T) {
	t.Run("writes chain then key", func(t *testing.T) {
		dir := t.TempDir()
		h := NewTestHelper(t, dir)
		paths := ssl.GetCertPaths(dir, h.GetConfig().CertName)
		writeCertificate(t, paths, time.Now().Add(30*24*time.Hour))
		buf := captureOutput(t)
		jsonOutput = true

		if err := runBundle(nil, []string{}); err != nil {
			t.Fatalf("runBundle() error = %v", err)
		}

		chain, _ := os.ReadFile(paths.FullChain)
		key, _ := os.ReadFile(paths.PrivKey)
		got, err := os.ReadFile(paths.Combined)
		if err != nil {
			t.Fatalf("bundle not written: %v", err)
		}
		if !bytes.Equal(got, append(chain, key...)) {
			t.Error("bundle is not chain followed by key")
		}

		var res CommandResult
		decodeJSON(t, buf, &res)
		if res.Path != paths.Combined || res.Action != "bundle" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("missing certificate", func(t *testing.T) {
		NewTestHelper(t, t.TempDir())
		captureOutput(t)

		err := runBundle(nil, []string{})
		if glueerrors.CodeOf(err) != glueerrors.ErrCodeBundle {
			t.Errorf("runBundle() error = %v, want BUNDLE", err)
		}
	})
}
