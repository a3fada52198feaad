package platform

import (
	"runtime"
	"strings"
	"testing"
)

func TestDetectPaths(t *testing.T) {
	paths := DetectPaths()

	if paths.LetsEncryptDir != DefaultLetsEncryptDir {
		t.Errorf("LetsEncryptDir = %s, want %s", paths.LetsEncryptDir, DefaultLetsEncryptDir)
	}
	if paths.HAProxyConfig == "" {
		t.Error("HAProxyConfig is empty")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		existing []string
		want     string
	}{
		{
			name: "linux nothing installed falls back to container path",
			goos: "linux",
			want: "/usr/local/etc/haproxy/haproxy.cfg",
		},
		{
			name:     "linux distro package",
			goos:     "linux",
			existing: []string{"/etc/haproxy/haproxy.cfg"},
			want:     "/etc/haproxy/haproxy.cfg",
		},
		{
			name:     "linux both present prefers container path",
			goos:     "linux",
			existing: []string{"/etc/haproxy/haproxy.cfg", "/usr/local/etc/haproxy/haproxy.cfg"},
			want:     "/usr/local/etc/haproxy/haproxy.cfg",
		},
		{
			name:     "darwin intel homebrew",
			goos:     "darwin",
			existing: []string{"/usr/local/etc/haproxy.cfg"},
			want:     "/usr/local/etc/haproxy.cfg",
		},
		{
			name: "darwin default apple silicon",
			goos: "darwin",
			want: "/opt/homebrew/etc/haproxy.cfg",
		},
		{
			name: "unknown platform uses linux layout",
			goos: "freebsd",
			want: "/usr/local/etc/haproxy/haproxy.cfg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists := func(p string) bool {
				for _, e := range tt.existing {
					if e == p {
						return true
					}
				}
				return false
			}

			got := detect(tt.goos, exists)
			if got.HAProxyConfig != tt.want {
				t.Errorf("HAProxyConfig = %s, want %s", got.HAProxyConfig, tt.want)
			}
			if got.LetsEncryptDir != DefaultLetsEncryptDir {
				t.Errorf("LetsEncryptDir = %s", got.LetsEncryptDir)
			}
		})
	}
}

func TestPathExists(t *testing.T) {
	// Root path should always exist
	if !pathExists("/") {
		t.Error("root path should exist")
	}

	// Non-existent path should return false
	if pathExists("/this/path/should/definitely/not/exist/anywhere") {
		t.Error("non-existent path should return false")
	}
}

func TestPlatform(t *testing.T) {
	p := Platform()
	if !strings.HasPrefix(p, runtime.GOOS+"/") {
		t.Errorf("Platform() = %s, want prefix %s/", p, runtime.GOOS)
	}
}
