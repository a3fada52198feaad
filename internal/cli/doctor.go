package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/output"
	"github.com/ksyq12/certglue/internal/platform"
	"github.com/ksyq12/certglue/internal/ssl"
)

// expiryWarning is how close to NotAfter doctor starts warning.
const expiryWarning = 14 * 24 * time.Hour

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system status and diagnose issues",
	Long: `Run diagnostic checks on the system and certglue configuration.

Checks:
  - certbot and HAProxy installation
  - Certificate identity (DOMAINS, EMAIL)
  - HAProxy configuration syntax
  - Certificate chain, key and bundle

Examples:
  certglue doctor
  certglue doctor --json`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"` // "success", "warning", "error"
	Message string `json:"message"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	Platform           string        `json:"platform"`
	SystemRequirements []CheckResult `json:"system_requirements"`
	Configuration      []CheckResult `json:"configuration"`
	Certificate        []CheckResult `json:"certificate"`
}

// HasErrors reports whether any check failed
func (r *DoctorReport) HasErrors() bool {
	for _, group := range [][]CheckResult{r.SystemRequirements, r.Configuration, r.Certificate} {
		for _, c := range group {
			if c.Status == "error" {
				return true
			}
		}
	}
	return false
}

// Version extraction patterns
var versionPatterns = map[string]*regexp.Regexp{
	"certbot": regexp.MustCompile(`certbot (\d+\.\d+\.\d+)`),
	"haproxy": regexp.MustCompile(`(?i)HAProxy version (\d+\.\d+(?:\.\d+)?)`),
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	report := &DoctorReport{Platform: platform.Platform()}
	report.SystemRequirements = checkSystemRequirements(ctx, deps.Executor, cfg)
	report.Configuration = checkConfiguration(ctx, drv, cfg)
	report.Certificate = checkCertificate(ssl.GetCertPaths(cfg.LetsEncryptDir, cfg.CertName), time.Now())

	if jsonOutput {
		if err := output.JSON(report); err != nil {
			return err
		}
	} else {
		displayDoctorResults(report)
	}

	if report.HasErrors() {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func checkSystemRequirements(ctx context.Context, exec executor.CommandExecutor, cfg *config.Config) []CheckResult {
	results := []CheckResult{}

	binaries := []struct {
		name        string
		binary      string
		pattern     string
		versionFlag string
	}{
		{"Certbot", "certbot", "certbot", "--version"},
		{"HAProxy", cfg.Proxy.Binary, "haproxy", "-v"},
	}

	for _, b := range binaries {
		if _, err := exec.LookPath(b.binary); err != nil {
			results = append(results, CheckResult{
				Status:  "error",
				Message: fmt.Sprintf("%s not installed (%s not on PATH)", b.name, b.binary),
			})
			continue
		}

		version := "unknown"
		if out, err := exec.Execute(ctx, b.binary, b.versionFlag); err == nil {
			if matches := versionPatterns[b.pattern].FindStringSubmatch(string(out)); len(matches) >= 2 {
				version = matches[1]
			}
		}
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("%s installed (%s)", b.name, version),
		})
	}

	return results
}

func checkConfiguration(ctx context.Context, drv driver.Driver, cfg *config.Config) []CheckResult {
	results := []CheckResult{}

	if err := cfg.Validate(); err != nil {
		results = append(results, CheckResult{
			Status:  "error",
			Message: fmt.Sprintf("Configuration invalid: %v", err),
		})
	} else {
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("Identity OK (%s)", strings.Join(cfg.Domains, ", ")),
		})
	}

	if cfg.Staging {
		results = append(results, CheckResult{
			Status:  "warning",
			Message: "STAGING is set; issued certificates are not publicly trusted",
		})
	}

	if err := drv.Test(ctx); err == nil {
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("%s config syntax OK", capitalize(drv.Name())),
		})
	} else {
		results = append(results, CheckResult{
			Status:  "error",
			Message: fmt.Sprintf("%s config syntax error", capitalize(drv.Name())),
		})
	}

	if cfg.Proxy.PIDFile == "" {
		results = append(results, CheckResult{
			Status:  "warning",
			Message: "No pid file configured; handoff tracks the launcher PID",
		})
	}

	return results
}

func checkCertificate(paths ssl.CertPaths, now time.Time) []CheckResult {
	results := []CheckResult{}

	info, err := ssl.Inspect(paths)
	if err != nil {
		status := "error"
		if info != nil && !info.FullChain.Exists {
			// Nothing issued yet; the first run will obtain it.
			status = "warning"
		}
		return append(results, CheckResult{Status: status, Message: err.Error()})
	}

	left := info.ExpiresIn(now)
	switch {
	case left <= 0:
		results = append(results, CheckResult{
			Status:  "error",
			Message: fmt.Sprintf("Certificate for %s expired on %s", info.Subject, info.NotAfter.Format("2006-01-02")),
		})
	case left < expiryWarning:
		results = append(results, CheckResult{
			Status:  "warning",
			Message: fmt.Sprintf("Certificate for %s expires soon (%s)", info.Subject, formatRemaining(left)),
		})
	default:
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("Certificate for %s valid until %s", info.Subject, info.NotAfter.Format("2006-01-02")),
		})
	}

	switch {
	case !info.PrivKey.Exists:
		results = append(results, CheckResult{Status: "error", Message: "Private key missing"})
	case !info.KeyMatches:
		results = append(results, CheckResult{Status: "error", Message: "Private key does not match certificate"})
	default:
		results = append(results, CheckResult{Status: "success", Message: "Private key matches certificate"})
	}

	switch {
	case !info.Combined.Exists:
		results = append(results, CheckResult{Status: "error", Message: "Bundle missing; run 'certglue bundle'"})
	case info.CombinedStale:
		results = append(results, CheckResult{Status: "warning", Message: "Bundle is older than the certificate chain"})
	default:
		results = append(results, CheckResult{Status: "success", Message: "Bundle present"})
	}

	return results
}

func displayDoctorResults(report *DoctorReport) {
	output.Print("Checking system requirements (%s)...", report.Platform)
	for _, check := range report.SystemRequirements {
		displayCheck(check)
	}
	output.Print("")

	output.Print("Checking configuration...")
	for _, check := range report.Configuration {
		displayCheck(check)
	}
	output.Print("")

	output.Print("Checking certificate...")
	for _, check := range report.Certificate {
		displayCheck(check)
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case "success":
		output.Success("%s", check.Message)
	case "warning":
		output.Warn("%s", check.Message)
	case "error":
		output.Error("%s", check.Message)
	}
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
