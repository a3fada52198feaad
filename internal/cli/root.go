package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/logger"
)

var (
	jsonOutput bool
	verbose    bool
	configFile string
	logFormat  string
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "certglue",
	Short: "Keep a Let's Encrypt certificate fresh behind HAProxy",
	Long: `certglue obtains and renews one TLS certificate with certbot and keeps
HAProxy serving it, handing connections over to a new HAProxy process
whenever the certificate changes.

The certificate identity comes from the environment:
  DOMAINS   comma or space separated names (required)
  EMAIL     Let's Encrypt account e-mail (required)
  STAGING   any non-empty value uses the staging authority`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(verbose)
		if logFormat != "" {
			return logger.SetFormat(logger.Format(logFormat))
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (default from config)")
}
