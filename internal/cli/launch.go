package cli

import (
	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/logger"
)

var (
	launchPrevPID     int
	launchFromPIDFile bool
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start HAProxy, handing off from a previous instance",
	Long: `Check the HAProxy configuration and start a new daemon.

With --prev-pid (or --from-pid-file) the new process is started with -sf
so the old one finishes its connections and exits.

Examples:
  certglue launch
  certglue launch --from-pid-file
  certglue launch --prev-pid 4242`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().IntVar(&launchPrevPID, "prev-pid", 0, "PID of the proxy to hand off from")
	launchCmd.Flags().BoolVar(&launchFromPIDFile, "from-pid-file", false, "Hand off from the proxy recorded in the pid file")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}

	var prev *driver.Handle
	switch {
	case launchPrevPID > 0:
		prev = &driver.Handle{PID: launchPrevPID}
	case launchFromPIDFile:
		prev = runningProxy(cfg)
	}
	logger.Debug("launching %s (previous = %s)", drv.Name(), prev.String())

	h, err := drv.Launch(cmdContext(cmd), prev)
	if err != nil {
		return err
	}

	result := newSuccessResult("launch")
	result.PID = h.PID
	if prev != nil {
		result.Message = "handed off from pid " + prev.String()
	}
	return outputResult(result, "Started %s (pid = %d)", drv.Name(), h.PID)
}
