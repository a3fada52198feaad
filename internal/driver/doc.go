// Package driver supervises the reverse proxy process.
//
// A Driver validates the proxy configuration and launches the proxy. Each
// launch may name the previous process; the new process takes over its
// listening sockets and asks it to finish serving in-flight connections,
// so no request is dropped during a certificate change.
//
// # Supported Proxies
//
//   - HAProxy: "haproxy -D [-p PIDFILE] [-sf PREV] -- CONFIG"
//
// # Basic Usage
//
//	drv, err := driver.New(cfg.Proxy, executor.NewSystemExecutor())
//	if err != nil {
//	    return err
//	}
//
//	var current *driver.Handle          // nil: no proxy yet
//	next, err := drv.Launch(ctx, current)
//	if err == nil {
//	    current = next
//	}
//
// # Handles
//
// A Handle holds the PID of the proxy. HAProxy daemonizes, so the PID
// returned by the launcher is not the serving process; configure a pid
// file and the handle tracks the daemon instead. Alive probes the process
// with signal 0 and Reap collects an exited child without blocking.
//
// # Testing
//
// NewHAProxyWithExecutor accepts a mock executor.CommandExecutor, and
// SetProcessTable swaps signalling and reaping for a FakeProcessTable:
//
//	procs := driver.NewFakeProcessTable()
//	driver.SetProcessTable(procs)
//	defer driver.ResetProcessTable()
//
// MockDriver stands in for a whole Driver in supervisor tests.
package driver
