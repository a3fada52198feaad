package cli

import (
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Concatenate fullchain.pem and privkey.pem into combined.pem",
	Long: `Rebuild the combined PEM file HAProxy loads, from the certificate
chain and private key certbot keeps in the live directory.

The file is replaced atomically with mode 0600.

Examples:
  certglue bundle
  certglue bundle --json`,
	Args: cobra.NoArgs,
	RunE: runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
}

func runBundle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	certbot := newCertbot(cfg)
	if err := certbot.Assemble(); err != nil {
		return err
	}

	result := newSuccessResult("bundle")
	result.Path = certbot.Paths().Combined
	return outputResult(result, "Bundle written to %s", result.Path)
}
