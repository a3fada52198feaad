package driver

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/logger"
)

// launcherPoll is how often a running launcher is checked for exit.
const launcherPoll = 25 * time.Millisecond

// HAProxyDriver implements the Driver interface for HAProxy
type HAProxyDriver struct {
	cfg  config.ProxyConfig
	exec executor.CommandExecutor
	now  func() time.Time

	// launchers still running when Launch returned, reaped by Refresh
	mu      sync.Mutex
	pending []int
}

// NewHAProxy creates a new HAProxy driver using the system executor
func NewHAProxy(cfg config.ProxyConfig) *HAProxyDriver {
	return NewHAProxyWithExecutor(cfg, executor.NewSystemExecutor())
}

// NewHAProxyWithExecutor creates a new HAProxy driver with a custom executor (for testing)
func NewHAProxyWithExecutor(cfg config.ProxyConfig, exec executor.CommandExecutor) *HAProxyDriver {
	if cfg.Binary == "" {
		cfg.Binary = "haproxy"
	}
	return &HAProxyDriver{
		cfg:  cfg,
		exec: exec,
		now:  time.Now,
	}
}

// Name returns the driver name
func (d *HAProxyDriver) Name() string {
	return "haproxy"
}

// IsInstalled checks if the haproxy binary is on PATH
func (d *HAProxyDriver) IsInstalled() bool {
	_, err := d.exec.LookPath(d.cfg.Binary)
	return err == nil
}

// Test validates the haproxy config syntax
func (d *HAProxyDriver) Test(ctx context.Context) error {
	output, err := d.exec.Execute(ctx, d.cfg.Binary, "-c", "-f", d.cfg.ConfigPath)
	if err != nil {
		return errors.WrapSubject(errors.ErrCodeLaunch, d.cfg.ConfigPath,
			"haproxy config test failed: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

// BuildArgs returns the haproxy command line for a launch succeeding prev
func (d *HAProxyDriver) BuildArgs(prev *Handle) []string {
	args := []string{"-D"}
	if d.cfg.PIDFile != "" {
		args = append(args, "-p", d.cfg.PIDFile)
	}
	if prev != nil {
		args = append(args, "-sf", strconv.Itoa(prev.PID))
	}
	return append(args, "--", d.cfg.ConfigPath)
}

// Launch starts haproxy in daemon mode. With prev set the new process
// binds alongside prev and sends it a soft-stop once ready; Launch does
// not wait for prev to finish.
//
// Launch waits up to LaunchCheckDelay for the launcher to exit; a nonzero
// exit fails the launch. With a pid file configured the handle tracks the
// daemon PID written there, which must be alive and differ from prev.
// Without one the handle is the launcher PID.
func (d *HAProxyDriver) Launch(ctx context.Context, prev *Handle) (*Handle, error) {
	if err := d.Test(ctx); err != nil {
		return nil, err
	}

	args := d.BuildArgs(prev)
	launcher, err := d.exec.Start(d.cfg.Binary, args...)
	if err != nil {
		return nil, errors.WrapSubject(errors.ErrCodeLaunch, d.cfg.Binary, "failed to start haproxy", err)
	}

	h := &Handle{PID: launcher, Launcher: launcher, Started: d.now()}
	logger.InfoFields("started haproxy", map[string]interface{}{
		"pid":      launcher,
		"previous": prev.String(),
		"args":     strings.Join(args, " "),
	})

	exited, status, werr := d.waitLauncher(ctx, launcher)
	if !exited && werr == nil {
		d.mu.Lock()
		d.pending = append(d.pending, launcher)
		d.mu.Unlock()
	}
	if ctx.Err() != nil {
		// Shutting down; the process was started, hand it back unchecked.
		return h, nil
	}
	if !exited && werr == nil {
		logger.Warn("haproxy launcher %d still running after %s", launcher, d.cfg.LaunchCheckDelay.D())
	}
	if exited && status != 0 {
		return nil, errors.WrapSubject(errors.ErrCodeLaunch, strconv.Itoa(launcher),
			fmt.Sprintf("haproxy exited with status %d", status), &executor.ExitError{Code: status})
	}

	if d.cfg.PIDFile == "" {
		if exited {
			logger.Debug("haproxy launcher %d exited; no pid_file, so handoffs signal the launcher PID", launcher)
		}
		return h, nil
	}

	pid, err := readPIDFile(d.cfg.PIDFile)
	if err != nil {
		return nil, errors.WrapSubject(errors.ErrCodeLaunch, d.cfg.PIDFile, "failed to read haproxy pid file", err)
	}
	if prev != nil && pid == prev.PID {
		return nil, errors.WrapSubject(errors.ErrCodeLaunch, d.cfg.PIDFile, "pid file still names the previous process", nil)
	}
	h.PID = pid
	if !h.Alive() {
		return nil, errors.WrapSubject(errors.ErrCodeLaunch, strconv.Itoa(pid), "haproxy is not running after launch", nil)
	}

	logger.DebugFields("haproxy daemon running", map[string]interface{}{
		"pid":      pid,
		"launcher": launcher,
	})
	return h, nil
}

// waitLauncher polls the launcher until it exits, LaunchCheckDelay passes
// or ctx is done. A launcher that is not our child reports ECHILD.
func (d *HAProxyDriver) waitLauncher(ctx context.Context, pid int) (bool, int, error) {
	deadline := d.now().Add(d.cfg.LaunchCheckDelay.D())
	for {
		exited, status, err := procs.Wait(pid)
		if err != nil || exited {
			return exited, status, err
		}
		if !d.now().Before(deadline) {
			return false, 0, nil
		}
		if err := sleepCtx(ctx, launcherPoll); err != nil {
			return false, 0, nil
		}
	}
}

// Refresh reaps finished launchers and re-resolves h. With a pid file the
// live daemon named there replaces h, since a handoff that reported failure
// may still have taken over. Without a pid file h is the launcher PID,
// which exits by design, so it is kept as is.
func (d *HAProxyDriver) Refresh(h *Handle) *Handle {
	d.reapPending()
	if h == nil {
		return nil
	}
	if d.cfg.PIDFile == "" {
		return h
	}
	if cur, err := ReadPIDFile(d.cfg.PIDFile); err == nil && cur.PID != h.PID && cur.Alive() {
		cur.Started = d.now()
		return cur
	}
	if h.Alive() {
		return h
	}
	return nil
}

func (d *HAProxyDriver) reapPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	left := d.pending[:0]
	for _, pid := range d.pending {
		if exited, _, err := procs.Wait(pid); err == nil && !exited {
			left = append(left, pid)
		}
	}
	d.pending = left
}

// readPIDFile returns the first PID listed in path
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("pid file is empty")
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", fields[0])
	}
	return pid, nil
}

// ReadPIDFile returns a handle for the process named in a pid file.
func ReadPIDFile(path string) (*Handle, error) {
	pid, err := readPIDFile(path)
	if err != nil {
		return nil, err
	}
	return &Handle{PID: pid}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// init registers the haproxy driver
func init() {
	Register("haproxy", func(cfg config.ProxyConfig, exec executor.CommandExecutor) Driver {
		return NewHAProxyWithExecutor(cfg, exec)
	})
}
