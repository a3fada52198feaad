package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	gerrors "github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/executor"
)

// haproxyLoop wires a loop to the real haproxy driver over a mock executor
// and a fake process table.
func haproxyLoop(t *testing.T, pidFile string, exec *executor.MockExecutor, results ...attemptResult) (*Loop, *fakeRenewer, *driver.FakeProcessTable) {
	t.Helper()
	procs := driver.NewFakeProcessTable()
	driver.SetProcessTable(procs)
	t.Cleanup(driver.ResetProcessTable)

	drv := driver.NewHAProxyWithExecutor(config.ProxyConfig{
		Driver:     "haproxy",
		Binary:     "haproxy",
		ConfigPath: "/x.cfg",
		PIDFile:    pidFile,
	}, exec)
	renewer := &fakeRenewer{results: results}
	return New(renewer, drv, testOptions()), renewer, procs
}

func TestStep_HandoffReportedFailedStillTracksSuccessor(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "haproxy.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("4000\n"), 0644))

	var procs *driver.FakeProcessTable
	exec := &executor.MockExecutor{
		StartFunc: func(name string, args ...string) (int, error) {
			// launcher has not finished by the time it is checked
			procs.SetAlive(1000)
			return 1000, nil
		},
	}
	loop, renewer, p := haproxyLoop(t, pidFile, exec, attemptResult{changed: true}, attemptResult{changed: false})
	procs = p
	procs.SetAlive(4000)
	loop.Adopt(&driver.Handle{PID: 4000})

	tr := loop.Step(context.Background())
	assert.ErrorIs(t, tr.Err, gerrors.ErrLaunchFailed)
	require.NotNil(t, tr.Handle)
	assert.Equal(t, 4000, tr.Handle.PID)
	assert.Equal(t, []string{"-D", "-p", pidFile, "-sf", "4000", "--", "/x.cfg"}, exec.StartCalls[0].Args)

	// the successor takes over anyway and soft-stops 4000
	procs.SetExited(1000, 0)
	require.NoError(t, os.WriteFile(pidFile, []byte("4242\n"), 0644))
	procs.SetAlive(4242)
	procs.Kill(4000)

	tr = loop.Step(context.Background())
	require.NoError(t, tr.Err)
	require.NotNil(t, tr.Handle)
	assert.Equal(t, 4242, tr.Handle.PID)
	assert.Equal(t, []bool{true, true}, renewer.proxyBound, "the challenge must avoid the port haproxy holds")

	_, _, err := procs.Wait(1000)
	assert.Error(t, err, "launcher should be reaped")
}

func TestStep_WithoutPIDFileKeepsLauncherHandle(t *testing.T) {
	var procs *driver.FakeProcessTable
	next := 1000
	exec := &executor.MockExecutor{
		StartFunc: func(name string, args ...string) (int, error) {
			// haproxy -D forks the daemon and the launcher exits at once
			pid := next
			next++
			procs.SetExited(pid, 0)
			return pid, nil
		},
	}
	loop, renewer, p := haproxyLoop(t, "", exec,
		attemptResult{changed: true}, attemptResult{changed: false}, attemptResult{changed: true})
	procs = p

	for i := 0; i < 3; i++ {
		tr := loop.Step(context.Background())
		require.NoError(t, tr.Err, "step %d", i)
	}

	assert.Equal(t, []bool{false, true, true}, renewer.proxyBound)
	require.Len(t, exec.StartCalls, 2)
	assert.Equal(t, []string{"-D", "--", "/x.cfg"}, exec.StartCalls[0].Args)
	assert.Equal(t, []string{"-D", "-sf", "1000", "--", "/x.cfg"}, exec.StartCalls[1].Args)
	require.NotNil(t, loop.Handle())
	assert.Equal(t, 1001, loop.Handle().PID)
}
