package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/metrics"
	"github.com/ksyq12/certglue/internal/output"
	"github.com/ksyq12/certglue/internal/supervisor"
)

var (
	runMetricsAddr string
	runOnce        bool
	runAdopt       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Renew the certificate forever and keep HAProxy serving it",
	Long: `Run the renewal loop in the foreground.

Each iteration runs certbot. When the certificate file changed, the bundle
is rebuilt and a new HAProxy is started with -sf so it takes over the
listening sockets from the old one. The loop then sleeps for
renew_interval, or retry_delay after a failure.

SIGINT and SIGTERM stop the loop; a running HAProxy is left alone.

Examples:
  DOMAINS=example.com EMAIL=ops@example.com certglue run
  certglue run --config /etc/certglue.yaml --metrics-addr :9100
  certglue run --once --json`,
	RunE: runRun,
}

func init() {
	addIdentityFlags(runCmd)
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single iteration and exit")
	runCmd.Flags().BoolVar(&runAdopt, "adopt", false, "Hand off from the proxy recorded in the pid file")
	rootCmd.AddCommand(runCmd)
}

// StepResult is the JSON form of one loop iteration
type StepResult struct {
	State         string `json:"state"`
	Changed       bool   `json:"changed"`
	ChallengePort int    `json:"challenge_port"`
	Launched      bool   `json:"launched"`
	ProxyPID      int    `json:"proxy_pid,omitempty"`
	NextAttempt   string `json:"next_attempt_in"`
	Error         string `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadIdentityConfig()
	if err != nil {
		return err
	}
	if runMetricsAddr != "" {
		cfg.MetricsAddr = runMetricsAddr
	}

	certbot := newCertbot(cfg)
	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}

	if !certbot.IsInstalled() {
		logger.Warn("certbot not found on PATH; every attempt will fail until it is installed")
	}
	if !drv.IsInstalled() {
		logger.Warn("%s not found on PATH", cfg.Proxy.Binary)
	}

	logger.InfoFields("certglue starting", map[string]interface{}{
		"version": version,
		"domains": cfg.Domains.String(),
		"email":   cfg.Email,
		"staging": bool(cfg.Staging),
		"bundle":  certbot.Paths().Combined,
		"proxy":   drv.Name(),
	})
	if cfg.Staging {
		logger.Warn("STAGING is set: certificates come from the staging authority and are not trusted by browsers")
	}

	opts := supervisor.OptionsFromConfig(cfg)
	opts.ReapOrphans = os.Getpid() == 1
	loop := supervisor.New(certbot, drv, opts)
	if deps.Sleep != nil {
		loop.SetSleep(deps.Sleep)
	}

	if runAdopt {
		if h := runningProxy(cfg); h != nil {
			logger.Info("adopting running proxy (pid = %d)", h.PID)
			loop.Adopt(h)
		} else {
			logger.Warn("--adopt: no live proxy in %s", cfg.Proxy.PIDFile)
		}
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnce {
		return reportStep(loop.Step(ctx))
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		m := metrics.New(certbot.Paths())
		loop.SetRecorder(m)
		router := m.Router(loop.Status)
		g.Go(func() error {
			logger.Info("serving metrics on %s", cfg.MetricsAddr)
			// a metrics failure must not stop renewals
			if err := metrics.Serve(gctx, cfg.MetricsAddr, router); err != nil {
				logger.LogError(err, "metrics server stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		// the metrics server stops with the loop
		defer cancel()
		return loop.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// reportStep prints one transition and returns its error, if any
func reportStep(tr supervisor.Transition) error {
	res := StepResult{
		State:         tr.State.String(),
		Changed:       tr.Outcome.BundleChanged,
		ChallengePort: tr.Outcome.ChallengePort,
		Launched:      tr.Launched,
		NextAttempt:   tr.Sleep.String(),
	}
	if tr.Handle != nil {
		res.ProxyPID = tr.Handle.PID
	}
	if tr.Err != nil {
		res.Error = tr.Err.Error()
	}

	if jsonOutput {
		if err := output.JSON(res); err != nil {
			return err
		}
		return tr.Err
	}

	switch {
	case tr.Err != nil:
		output.Error("%s: %v", tr.State, tr.Err)
	case tr.State == supervisor.SucceededChanged:
		output.Success("Certificate updated; proxy running (pid = %d)", res.ProxyPID)
	default:
		output.Success("Certificate unchanged")
	}
	output.Info("Next attempt in %s", tr.Sleep)
	return tr.Err
}
