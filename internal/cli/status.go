package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/output"
	"github.com/ksyq12/certglue/internal/ssl"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the certificate and proxy state",
	Long: `Show the installed certificate (names, issuer, expiry), the bundle files
and whether the proxy recorded in the pid file is running.

Examples:
  certglue status
  certglue status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// ProxyState describes the proxy process from the pid file
type ProxyState struct {
	Driver  string `json:"driver"`
	PIDFile string `json:"pid_file,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Running bool   `json:"running"`
}

// StatusReport is the output of the status command
type StatusReport struct {
	CertName    string        `json:"cert_name"`
	Domains     []string      `json:"domains"`
	Staging     bool          `json:"staging"`
	Certificate *ssl.CertInfo `json:"certificate"`
	Error       string        `json:"error,omitempty"`
	Proxy       ProxyState    `json:"proxy"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := ssl.GetCertPaths(cfg.LetsEncryptDir, cfg.CertName)
	report := StatusReport{
		CertName: cfg.CertName,
		Domains:  cfg.Domains,
		Staging:  bool(cfg.Staging),
		Proxy: ProxyState{
			Driver:  cfg.Proxy.Driver,
			PIDFile: cfg.Proxy.PIDFile,
		},
	}

	info, err := ssl.Inspect(paths)
	report.Certificate = info
	if err != nil {
		report.Error = err.Error()
	}

	if h := runningProxy(cfg); h != nil {
		report.Proxy.PID = h.PID
		report.Proxy.Running = true
	}

	if jsonOutput {
		return output.JSON(report)
	}

	displayStatus(report, time.Now())
	return nil
}

func displayStatus(r StatusReport, now time.Time) {
	domains := strings.Join(r.Domains, ", ")
	if domains == "" {
		domains = "(none configured)"
	}

	pairs := [][2]string{
		{"Certificate", r.CertName},
		{"Domains", domains},
		{"Staging", fmt.Sprintf("%v", r.Staging)},
	}

	info := r.Certificate
	if info != nil && info.Subject != "" {
		pairs = append(pairs,
			[2]string{"Subject", info.Subject},
			[2]string{"Issuer", info.Issuer},
			[2]string{"Names", strings.Join(info.DNSNames, ", ")},
			[2]string{"Expires", fmt.Sprintf("%s (%s)", info.NotAfter.Format(time.RFC3339), formatRemaining(info.ExpiresIn(now)))},
			[2]string{"Key matches", fmt.Sprintf("%v", info.KeyMatches)},
		)
	}
	if info != nil {
		pairs = append(pairs,
			[2]string{"Chain", fileStateText(info.FullChain)},
			[2]string{"Key", fileStateText(info.PrivKey)},
			[2]string{"Bundle", fileStateText(info.Combined)},
		)
	}

	proxy := "not running"
	if r.Proxy.Running {
		proxy = fmt.Sprintf("running (pid = %d)", r.Proxy.PID)
	}
	pairs = append(pairs, [2]string{"Proxy", fmt.Sprintf("%s, %s", r.Proxy.Driver, proxy)})

	output.KeyValue(pairs)

	if r.Error != "" {
		output.Warn("%s", r.Error)
	}
	if info != nil && info.CombinedStale {
		output.Warn("Bundle is older than the certificate chain; run 'certglue bundle'")
	}
}

func fileStateText(s ssl.FileState) string {
	if !s.Exists {
		return s.Path + " (missing)"
	}
	return fmt.Sprintf("%s (%s)", s.Path, s.ModTime.Format(time.RFC3339))
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%d days left", days)
	}
	return fmt.Sprintf("%s left", d.Round(time.Minute))
}
