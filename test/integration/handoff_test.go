//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/platform"
	"github.com/ksyq12/certglue/internal/ssl"
	"github.com/ksyq12/certglue/internal/supervisor"
)

// fakeCertbot issues a dummy lineage the first time and reports
// "not due" afterwards. A "fail" file in the config dir makes it exit 1.
const fakeCertbot = `#!/bin/sh
dir=/etc/letsencrypt
name=""
while [ $# -gt 0 ]; do
	case "$1" in
	--config-dir) dir="$2"; shift 2 ;;
	--cert-name) name="$2"; shift 2 ;;
	*) shift ;;
	esac
done
if [ -f "$dir/fail" ]; then
	echo "Challenge failed for domain example.com" >&2
	exit 1
fi
live="$dir/live/$name"
if [ -f "$live/fullchain.pem" ]; then
	echo "Certificate not yet due for renewal; no action taken."
	exit 0
fi
sleep 0.1
mkdir -p "$live"
printf 'CHAIN\n' > "$live/fullchain.pem"
printf 'KEY\n' > "$live/privkey.pem"
echo "Successfully received certificate."
`

// fakeHAProxy checks configs that start with "global" and, in daemon
// mode, soft-stops the -sf process and leaves a sleeping daemon behind.
const fakeHAProxy = `#!/bin/sh
if [ "$1" = "-c" ]; then
	grep -q '^global' "$3" || { echo "config invalid" >&2; exit 1; }
	exit 0
fi
pidfile=""
prev=""
while [ $# -gt 0 ]; do
	case "$1" in
	-p) pidfile="$2"; shift 2 ;;
	-sf) prev="$2"; shift 2 ;;
	--) shift; break ;;
	*) shift ;;
	esac
done
[ -n "$prev" ] && kill "$prev" 2>/dev/null
sleep 300 >/dev/null 2>&1 </dev/null &
echo $! > "$pidfile"
exit 0
`

type testEnv struct {
	base    string
	bin     string
	leDir   string
	cfg     *config.Config
	certbot *ssl.Certbot
	loop    *supervisor.Loop
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	base := t.TempDir()
	env := &testEnv{
		base:  base,
		bin:   filepath.Join(base, "bin"),
		leDir: filepath.Join(base, "letsencrypt"),
	}

	if err := os.MkdirAll(env.bin, 0755); err != nil {
		t.Fatalf("Failed to create bin directory: %v", err)
	}
	if err := os.MkdirAll(env.leDir, 0755); err != nil {
		t.Fatalf("Failed to create letsencrypt directory: %v", err)
	}
	scripts := map[string]string{"certbot": fakeCertbot, "haproxy": fakeHAProxy}
	for name, body := range scripts {
		if err := os.WriteFile(filepath.Join(env.bin, name), []byte(body), 0755); err != nil {
			t.Fatalf("Failed to write fake %s: %v", name, err)
		}
	}
	t.Setenv("PATH", env.bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	haCfg := filepath.Join(base, "haproxy.cfg")
	if err := os.WriteFile(haCfg, []byte("global\n    daemon\n"), 0644); err != nil {
		t.Fatalf("Failed to write haproxy.cfg: %v", err)
	}

	cfg := config.NewWithPaths(&platform.PlatformPaths{LetsEncryptDir: env.leDir, HAProxyConfig: haCfg})
	cfg.Domains = config.DomainList{"example.com", "www.example.com"}
	cfg.Email = "ops@example.com"
	cfg.Proxy.PIDFile = filepath.Join(base, "haproxy.pid")
	cfg.Proxy.LaunchCheckDelay = config.Duration(200 * time.Millisecond)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	env.cfg = cfg

	drv, err := driver.New(cfg.Proxy, executor.NewSystemExecutor())
	if err != nil {
		t.Fatalf("driver.New() error = %v", err)
	}
	env.certbot = ssl.NewCertbot(cfg)
	env.loop = supervisor.New(env.certbot, drv, supervisor.OptionsFromConfig(cfg))

	t.Cleanup(func() {
		if h := env.loop.Handle(); h != nil {
			_ = unix.Kill(h.PID, unix.SIGTERM)
		}
	})
	return env
}

func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); err == unix.ESRCH {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("process %d still running after handoff", pid)
}

func TestHandoffIntegration(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	paths := env.certbot.Paths()

	var first *driver.Handle

	t.Run("First issue launches proxy", func(t *testing.T) {
		tr := env.loop.Step(ctx)
		if tr.Err != nil {
			t.Fatalf("Step() error = %v", tr.Err)
		}
		if tr.State != supervisor.SucceededChanged {
			t.Fatalf("State = %s, want succeeded_changed", tr.State)
		}
		if tr.Outcome.ChallengePort != 80 {
			t.Errorf("ChallengePort = %d, want 80", tr.Outcome.ChallengePort)
		}
		if tr.Handle == nil || !tr.Handle.Alive() {
			t.Fatalf("proxy not running: %v", tr.Handle)
		}
		first = tr.Handle

		combined, err := os.ReadFile(paths.Combined)
		if err != nil {
			t.Fatalf("Failed to read bundle: %v", err)
		}
		if string(combined) != "CHAIN\nKEY\n" {
			t.Errorf("bundle = %q", combined)
		}
		info, err := os.Stat(paths.Combined)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("bundle mode = %o, want 600", info.Mode().Perm())
		}
	})

	t.Run("Unchanged certificate keeps proxy", func(t *testing.T) {
		tr := env.loop.Step(ctx)
		if tr.State != supervisor.SucceededNoChange {
			t.Fatalf("State = %s, want succeeded_no_change (err %v)", tr.State, tr.Err)
		}
		if tr.Outcome.ChallengePort != 8080 {
			t.Errorf("ChallengePort = %d, want 8080 while the proxy holds 80", tr.Outcome.ChallengePort)
		}
		if tr.Handle.PID != first.PID {
			t.Errorf("handle changed to %d", tr.Handle.PID)
		}
	})

	t.Run("Failed renewal keeps proxy", func(t *testing.T) {
		marker := filepath.Join(env.leDir, "fail")
		if err := os.WriteFile(marker, nil, 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(marker)

		tr := env.loop.Step(ctx)
		if tr.State != supervisor.Failed || tr.Err == nil {
			t.Fatalf("State = %s, err = %v; want failed", tr.State, tr.Err)
		}
		if tr.Sleep != time.Minute {
			t.Errorf("Sleep = %v, want 1m", tr.Sleep)
		}
		if !first.Alive() {
			t.Error("proxy should survive a failed renewal")
		}
	})

	t.Run("New certificate hands off", func(t *testing.T) {
		if err := os.Remove(paths.FullChain); err != nil {
			t.Fatal(err)
		}

		tr := env.loop.Step(ctx)
		if tr.State != supervisor.SucceededChanged || tr.Err != nil {
			t.Fatalf("State = %s, err = %v", tr.State, tr.Err)
		}
		if tr.Handle == nil || tr.Handle.PID == first.PID {
			t.Fatalf("handle = %v, want a new process", tr.Handle)
		}
		if !tr.Handle.Alive() {
			t.Error("new proxy not running")
		}
		waitGone(t, first.PID)

		st := env.loop.Status()
		if st.Attempts != 4 || st.ConsecutiveFailures != 0 {
			t.Errorf("status = %+v", st)
		}
	})
}
