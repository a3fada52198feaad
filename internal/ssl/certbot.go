package ssl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/platform"
)

// Bundle file names inside the certbot live directory.
const (
	FullChainFile = "fullchain.pem"
	PrivKeyFile   = "privkey.pem"
	CombinedFile  = "combined.pem"
)

// defaultChallengePort is the port certbot's standalone server uses without --http-01-port.
const defaultChallengePort = 80

// CertPaths locates the certificate bundle on disk
type CertPaths struct {
	Name      string
	Dir       string
	FullChain string
	PrivKey   string
	Combined  string
}

// GetCertPaths returns the bundle paths for a certificate name under a letsencrypt directory
func GetCertPaths(letsencryptDir, name string) CertPaths {
	dir := filepath.Join(letsencryptDir, "live", name)
	return CertPaths{
		Name:      name,
		Dir:       dir,
		FullChain: filepath.Join(dir, FullChainFile),
		PrivKey:   filepath.Join(dir, PrivKeyFile),
		Combined:  filepath.Join(dir, CombinedFile),
	}
}

// Outcome is the result of one renewal attempt
type Outcome struct {
	Start         time.Time
	ExitStatus    int
	ChainExists   bool
	ChainModTime  time.Time
	ChallengePort int
	BundleChanged bool
	Output        []byte
}

// Certbot drives the certbot client for a single certificate lineage
type Certbot struct {
	cfg   *config.Config
	paths CertPaths
	exec  executor.CommandExecutor
	now   func() time.Time
}

// NewCertbot creates a Certbot using the system executor
func NewCertbot(cfg *config.Config) *Certbot {
	return NewCertbotWithExecutor(cfg, executor.NewSystemExecutor())
}

// NewCertbotWithExecutor creates a Certbot with a custom executor (for testing)
func NewCertbotWithExecutor(cfg *config.Config, exec executor.CommandExecutor) *Certbot {
	return &Certbot{
		cfg:   cfg,
		paths: GetCertPaths(cfg.LetsEncryptDir, cfg.CertName),
		exec:  exec,
		now:   time.Now,
	}
}

// SetClock replaces the clock used to stamp attempt start times
func (c *Certbot) SetClock(now func() time.Time) {
	c.now = now
}

// Paths returns the bundle paths
func (c *Certbot) Paths() CertPaths {
	return c.paths
}

// IsInstalled checks if certbot is installed
func (c *Certbot) IsInstalled() bool {
	_, err := c.exec.LookPath("certbot")
	return err == nil
}

// ChallengePort picks the HTTP-01 port. While the proxy owns the primary
// port, certbot answers on the alternate one and the proxy forwards to it.
func (c *Certbot) ChallengePort(proxyBound bool) int {
	if proxyBound {
		return c.cfg.AltChallengePort
	}
	return c.cfg.ChallengePort
}

// BuildArgs returns the certbot arguments for an attempt on the given port
func (c *Certbot) BuildArgs(port int) []string {
	args := []string{
		"certonly",
		"--noninteractive",
		"--agree-tos",
		"--email", c.cfg.Email,
	}
	if c.cfg.Staging {
		args = append(args, "--staging")
	}
	if c.cfg.LetsEncryptDir != "" && c.cfg.LetsEncryptDir != platform.DefaultLetsEncryptDir {
		args = append(args, "--config-dir", c.cfg.LetsEncryptDir)
	}
	args = append(args,
		"--cert-name", c.paths.Name,
		"--expand",
		"--standalone",
		"--preferred-challenges", "http-01",
	)
	if port != defaultChallengePort {
		args = append(args, "--http-01-port", strconv.Itoa(port))
	}
	return append(args, "--domains", c.cfg.Domains.String())
}

// Attempt runs one certbot invocation and reports whether it produced a new chain.
//
// A nonzero exit yields ErrRenewalFailed; a zero exit that leaves no chain
// file yields ErrArtifactMissing. The outcome is populated in both cases.
func (c *Certbot) Attempt(ctx context.Context, proxyBound bool) (Outcome, error) {
	port := c.ChallengePort(proxyBound)
	out := Outcome{
		Start:         c.now(),
		ChallengePort: port,
	}

	if timeout := c.cfg.RenewTimeout.D(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := c.BuildArgs(port)
	logger.DebugFields("running certbot", map[string]interface{}{
		"args": strings.Join(args, " "),
		"port": port,
	})

	output, err := c.exec.Execute(ctx, "certbot", args...)
	out.Output = output
	out.ExitStatus = executor.ExitCode(err)
	logOutput(output)

	if info, statErr := os.Stat(c.paths.FullChain); statErr == nil {
		out.ChainExists = true
		out.ChainModTime = info.ModTime()
	}

	if err != nil {
		msg := fmt.Sprintf("certbot exited with status %d", out.ExitStatus)
		if last := lastLine(output); last != "" {
			msg += ": " + last
		}
		return out, errors.WrapSubject(errors.ErrCodeRenewal, c.paths.Name, msg, err)
	}
	if !out.ChainExists {
		return out, errors.WrapSubject(errors.ErrCodeArtifact, c.paths.FullChain, "certbot succeeded but the chain file is missing", nil)
	}

	out.BundleChanged = out.ChainModTime.After(out.Start)
	return out, nil
}

// Assemble writes combined.pem as the chain followed by the key.
// The file is replaced atomically so readers never see a partial bundle.
func (c *Certbot) Assemble() error {
	chain, err := os.ReadFile(c.paths.FullChain)
	if err != nil {
		return errors.WrapSubject(errors.ErrCodeBundle, c.paths.FullChain, "failed to read chain", err)
	}
	key, err := os.ReadFile(c.paths.PrivKey)
	if err != nil {
		return errors.WrapSubject(errors.ErrCodeBundle, c.paths.PrivKey, "failed to read private key", err)
	}

	data := make([]byte, 0, len(chain)+len(key))
	data = append(data, chain...)
	data = append(data, key...)

	if err := renameio.WriteFile(c.paths.Combined, data, 0600); err != nil {
		return errors.WrapSubject(errors.ErrCodeBundle, c.paths.Combined, "failed to write bundle", err)
	}

	logger.InfoFields("bundle assembled", map[string]interface{}{
		"path":  c.paths.Combined,
		"bytes": len(data),
	})
	return nil
}

func logOutput(output []byte) {
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			logger.Debug("certbot: %s", line)
		}
	}
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
