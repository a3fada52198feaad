package cli

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/certglue/internal/ssl"
)

func TestRunStatus(t *testing.T) {
	t.Run("installed certificate", func(t *testing.T) {
		dir := t.TempDir()
		h := NewTestHelper(t, dir)
		paths := ssl.GetCertPaths(dir, h.GetConfig().CertName)
		notAfter := time.Now().Add(45 * 24 * time.Hour).Truncate(time.Second)
		writeCertificate(t, paths, notAfter)
		buf := captureOutput(t)
		jsonOutput = true

		if err := runStatus(nil, []string{}); err != nil {
			t.Fatalf("runStatus() error = %v", err)
		}

		var report StatusReport
		decodeJSON(t, buf, &report)
		if report.Error != "" {
			t.Errorf("Error = %q", report.Error)
		}
		if report.Certificate == nil || report.Certificate.Subject != "example.com" {
			t.Fatalf("Certificate = %+v", report.Certificate)
		}
		if !report.Certificate.NotAfter.Equal(notAfter) {
			t.Errorf("NotAfter = %v, want %v", report.Certificate.NotAfter, notAfter)
		}
		if !report.Certificate.KeyMatches {
			t.Error("key should match")
		}
		if report.Proxy.Running {
			t.Error("no proxy should be running")
		}
	})

	t.Run("nothing issued yet", func(t *testing.T) {
		NewTestHelper(t, t.TempDir())
		buf := captureOutput(t)
		jsonOutput = true

		if err := runStatus(nil, []string{}); err != nil {
			t.Fatalf("runStatus() error = %v", err)
		}

		var report StatusReport
		decodeJSON(t, buf, &report)
		if !strings.Contains(report.Error, "not found") {
			t.Errorf("Error = %q", report.Error)
		}
		if report.Certificate.FullChain.Exists {
			t.Error("chain should be reported missing")
		}
	})

	t.Run("human readable", func(t *testing.T) {
		dir := t.TempDir()
		h := NewTestHelper(t, dir)
		paths := ssl.GetCertPaths(dir, h.GetConfig().CertName)
		writeCertificate(t, paths, time.Now().Add(45*24*time.Hour))
		buf := captureOutput(t)

		if err := runStatus(nil, []string{}); err != nil {
			t.Fatalf("runStatus() error = %v", err)
		}

		out := buf.String()
		for _, want := range []string{"example.com", "days left", "(missing)", "not running"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Hour, "expired"},
		{0, "expired"},
		{90 * time.Minute, "1h30m0s left"},
		{49 * time.Hour, "2 days left"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.in); got != tt.want {
			t.Errorf("formatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileStateText(t *testing.T) {
	missing := ssl.FileState{Path: "/x/combined.pem"}
	if got := fileStateText(missing); got != "/x/combined.pem (missing)" {
		t.Errorf("fileStateText() = %q", got)
	}

	f, err := os.CreateTemp(t.TempDir(), "chain")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	info, _ := os.Stat(f.Name())
	present := ssl.FileState{Path: f.Name(), Exists: true, ModTime: info.ModTime()}
	if got := fileStateText(present); !strings.HasPrefix(got, f.Name()+" (") {
		t.Errorf("fileStateText() = %q", got)
	}
}
