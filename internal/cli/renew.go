package cli

import (
	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/output"
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Run one certbot attempt and rebuild the bundle if it changed",
	Long: `Run certbot once for the configured identity.

If a proxy recorded in the pid file is running, certbot answers the
challenge on alt_challenge_port so HAProxy can forward to it; otherwise
certbot binds challenge_port itself. The proxy is not touched; use
'certglue launch' afterwards to hand off.

Examples:
  certglue renew
  certglue renew --staging --domains "example.com www.example.com"`,
	RunE: runRenew,
}

func init() {
	addIdentityFlags(renewCmd)
	rootCmd.AddCommand(renewCmd)
}

// RenewResult is the outcome of a single renew command
type RenewResult struct {
	Changed       bool   `json:"changed"`
	ChallengePort int    `json:"challenge_port"`
	ExitStatus    int    `json:"exit_status"`
	Bundle        string `json:"bundle"`
}

func runRenew(cmd *cobra.Command, args []string) error {
	cfg, err := loadIdentityConfig()
	if err != nil {
		return err
	}

	certbot := newCertbot(cfg)
	proxy := runningProxy(cfg)

	out, err := certbot.Attempt(cmdContext(cmd), proxy != nil)
	if err != nil {
		return err
	}

	result := RenewResult{
		Changed:       out.BundleChanged,
		ChallengePort: out.ChallengePort,
		ExitStatus:    out.ExitStatus,
		Bundle:        certbot.Paths().Combined,
	}

	if out.BundleChanged {
		if err := certbot.Assemble(); err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(result)
		}
		output.Success("Certificate updated; bundle written to %s", result.Bundle)
		output.Info("Run 'certglue launch' to hand the proxy over")
		return nil
	}

	if jsonOutput {
		return output.JSON(result)
	}
	output.Success("Certificate unchanged")
	return nil
}
