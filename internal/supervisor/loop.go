package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/ssl"
)

// Renewer obtains the certificate and assembles the proxy bundle.
// *ssl.Certbot implements it.
type Renewer interface {
	Attempt(ctx context.Context, proxyBound bool) (ssl.Outcome, error)
	Assemble() error
}

// Recorder observes loop activity, e.g. for metrics.
type Recorder interface {
	RecordAttempt(tr Transition)
	RecordLaunch(h *driver.Handle, err error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options tunes the loop timing.
type Options struct {
	RenewInterval     time.Duration
	RetryDelay        time.Duration
	RetryPolicy       string
	RetryMaxDelay     time.Duration
	RelaunchOnFailure bool

	// ReapOrphans collects exited children before each attempt (PID 1 duty).
	ReapOrphans bool
}

// OptionsFromConfig copies the loop settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RenewInterval:     cfg.RenewInterval.D(),
		RetryDelay:        cfg.RetryDelay.D(),
		RetryPolicy:       cfg.RetryPolicy,
		RetryMaxDelay:     cfg.RetryMaxDelay.D(),
		RelaunchOnFailure: cfg.RelaunchOnFailure,
	}
}

// Loop renews the certificate forever and hands the proxy over whenever
// a new certificate arrives. Step and Run must be called from one goroutine;
// Status and Handle may be called from any.
type Loop struct {
	renewer  Renewer
	drv      driver.Driver
	opts     Options
	retry    backoff.BackOff
	sleep    SleepFunc
	now      func() time.Time
	recorder Recorder

	// relaunch is set after a failed launch when RelaunchOnFailure is on.
	relaunch bool

	mu     sync.RWMutex
	handle *driver.Handle
	status Status
}

// New creates a loop in the Idle state with no proxy.
func New(renewer Renewer, drv driver.Driver, opts Options) *Loop {
	return &Loop{
		renewer: renewer,
		drv:     drv,
		opts:    opts,
		retry:   newRetryBackOff(opts.RetryPolicy, opts.RetryDelay, opts.RetryMaxDelay),
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// SetSleep replaces the sleep used between iterations.
func (l *Loop) SetSleep(fn SleepFunc) {
	l.sleep = fn
}

// SetClock replaces the clock used for status timestamps.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// SetRecorder attaches an observer.
func (l *Loop) SetRecorder(r Recorder) {
	l.recorder = r
}

// Adopt takes over an already running proxy, so the next launch hands off from it.
func (l *Loop) Adopt(h *driver.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handle = h
	l.status.Proxy = h
}

// Handle returns the current proxy handle, nil when none.
func (l *Loop) Handle() *driver.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handle
}

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Run repeats Step, sleeping as each transition asks, until ctx is done.
// Cancellation is a clean exit and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		tr := l.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.InfoFields("sleeping", map[string]interface{}{
			"duration": tr.Sleep.String(),
			"state":    tr.State.String(),
		})
		if err := l.sleep(ctx, tr.Sleep); err != nil {
			return nil
		}
	}
}

// Step runs one renewal attempt and any resulting proxy handoff.
func (l *Loop) Step(ctx context.Context) Transition {
	if l.opts.ReapOrphans {
		if n := driver.ReapOrphans(); n > 0 {
			logger.Debug("reaped %d exited child processes", n)
		}
	}
	l.refreshHandle()

	l.setState(Attempting)
	current := l.Handle()

	logger.InfoFields("attempting to acquire or renew certificate", map[string]interface{}{
		"proxy": current.String(),
	})
	out, err := l.renewer.Attempt(ctx, current != nil)
	if err != nil {
		logger.LogError(err, "renewal attempt failed")
		return l.finish(Transition{State: Failed, Err: err, Outcome: out, Sleep: l.retry.NextBackOff()})
	}

	if !out.BundleChanged {
		if l.relaunch {
			logger.Info("certificate unchanged; retrying the failed proxy launch")
			return l.launch(ctx, Transition{State: SucceededChanged, Outcome: out})
		}
		logger.Info("certificate unchanged")
		return l.finish(Transition{State: SucceededNoChange, Outcome: out, Sleep: l.opts.RenewInterval})
	}

	logger.Info("certificate updated; reloading proxy")
	if err := l.renewer.Assemble(); err != nil {
		logger.LogError(err, "failed to assemble bundle")
		return l.finish(Transition{State: Failed, Err: err, Outcome: out, Sleep: l.retry.NextBackOff()})
	}
	return l.launch(ctx, Transition{State: SucceededChanged, Outcome: out})
}

// launch hands the proxy over to a new process. On failure the handle is
// re-resolved through the driver rather than replaced.
func (l *Loop) launch(ctx context.Context, tr Transition) Transition {
	tr.Launched = true
	prev := l.Handle()

	h, err := l.drv.Launch(ctx, prev)
	if l.recorder != nil {
		l.recorder.RecordLaunch(h, err)
	}
	if err != nil {
		logger.LogError(err, "proxy launch failed; keeping previous proxy")
		if prev != nil {
			// -sf was sent, so the new process may have taken over regardless.
			l.refreshHandle()
		}
		tr.Err = err
		tr.Sleep = l.opts.RenewInterval
		l.relaunch = l.opts.RelaunchOnFailure
		if l.relaunch {
			tr.Sleep = l.opts.RetryDelay
		}
		return l.finish(tr)
	}

	logger.InfoFields("proxy running", map[string]interface{}{
		"pid":      h.PID,
		"previous": prev.String(),
	})
	l.relaunch = false
	l.mu.Lock()
	l.handle = h
	l.mu.Unlock()

	tr.Sleep = l.opts.RenewInterval
	return l.finish(tr)
}

// refreshHandle asks the driver which process now serves the proxy and
// drops the handle when none does.
func (l *Loop) refreshHandle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		l.drv.Refresh(nil)
		return
	}
	h := l.drv.Refresh(l.handle)
	switch {
	case h == nil:
		logger.WarnFields("proxy process is gone; dropping handle", map[string]interface{}{
			"pid": l.handle.PID,
		})
	case h.PID != l.handle.PID:
		logger.InfoFields("proxy handle moved to the process in the pid file", map[string]interface{}{
			"pid":      h.PID,
			"previous": l.handle.PID,
		})
	}
	l.handle = h
	l.status.Proxy = h
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = s
}

// finish records the transition in the status snapshot.
func (l *Loop) finish(tr Transition) Transition {
	now := l.now()

	l.mu.Lock()
	tr.Handle = l.handle
	st := &l.status
	st.State = tr.State
	st.Proxy = l.handle
	st.Attempts++
	st.LastAttempt = now
	st.NextAttempt = now.Add(tr.Sleep)
	if tr.State == Failed {
		st.ConsecutiveFailures++
		st.LastError = tr.Err.Error()
	} else {
		st.ConsecutiveFailures = 0
		st.LastSuccess = now
		st.LastError = ""
		if tr.Err != nil {
			st.LastError = tr.Err.Error()
		}
		if tr.State == SucceededChanged && tr.Err == nil {
			st.LastChange = now
		}
	}
	l.mu.Unlock()

	if tr.State != Failed {
		l.retry.Reset()
	}
	if l.recorder != nil {
		l.recorder.RecordAttempt(tr)
	}
	return tr
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
