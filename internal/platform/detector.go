// Package platform provides platform-specific default paths for certbot and HAProxy.
package platform

import (
	"fmt"
	"os"
	"runtime"
)

// DefaultLetsEncryptDir is certbot's default --config-dir on every platform.
const DefaultLetsEncryptDir = "/etc/letsencrypt"

// PlatformPaths contains the detected default paths.
type PlatformPaths struct {
	LetsEncryptDir string
	HAProxyConfig  string
}

// haproxyCandidates lists config locations per OS, most specific first.
// The official haproxy container image uses /usr/local/etc/haproxy.
var haproxyCandidates = map[string][]string{
	"linux": {
		"/usr/local/etc/haproxy/haproxy.cfg",
		"/etc/haproxy/haproxy.cfg",
	},
	"darwin": {
		"/opt/homebrew/etc/haproxy.cfg",
		"/usr/local/etc/haproxy.cfg",
	},
}

// DetectPaths returns default paths for the running platform.
// Unknown platforms get the Linux layout.
func DetectPaths() *PlatformPaths {
	return detect(runtime.GOOS, pathExists)
}

func detect(goos string, exists func(string) bool) *PlatformPaths {
	candidates, ok := haproxyCandidates[goos]
	if !ok {
		candidates = haproxyCandidates["linux"]
	}

	cfg := candidates[0]
	for _, c := range candidates {
		if exists(c) {
			cfg = c
			break
		}
	}

	return &PlatformPaths{
		LetsEncryptDir: DefaultLetsEncryptDir,
		HAProxyConfig:  cfg,
	}
}

// pathExists checks if a path exists on the filesystem.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
