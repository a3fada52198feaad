package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/output"
	"github.com/ksyq12/certglue/internal/ssl"
)

// Identity overrides shared by run and renew
var (
	flagDomains string
	flagEmail   string
	flagStaging bool
)

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagDomains, "domains", "", "Override DOMAINS (comma or space separated)")
	cmd.Flags().StringVar(&flagEmail, "email", "", "Override EMAIL")
	cmd.Flags().BoolVar(&flagStaging, "staging", false, "Use the Let's Encrypt staging authority")
}

// loadConfig loads the configuration and applies its log settings
// unless --verbose or --log-format already decided them.
func loadConfig() (*config.Config, error) {
	cfg, err := deps.ConfigLoader.Load(config.LoadOptions{File: configFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !verbose && cfg.LogLevel != "" {
		if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	if logFormat == "" && cfg.LogFormat != "" {
		_ = logger.SetFormat(logger.Format(cfg.LogFormat))
	}

	return cfg, nil
}

// loadIdentityConfig loads the configuration, applies identity flags and validates it
func loadIdentityConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if flagDomains != "" {
		cfg.Domains = config.ParseDomainList(flagDomains)
	}
	if flagEmail != "" {
		cfg.Email = flagEmail
	}
	if flagStaging {
		cfg.Staging = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.DebugFields("effective configuration", map[string]interface{}{
		"config": cfg.Dump(),
	})
	return cfg, nil
}

func newCertbot(cfg *config.Config) *ssl.Certbot {
	return ssl.NewCertbotWithExecutor(cfg, deps.Executor)
}

func newDriver(cfg *config.Config) (driver.Driver, error) {
	return deps.DriverFactory.Create(cfg.Proxy, deps.Executor)
}

// runningProxy returns the proxy recorded in the pid file if it is alive
func runningProxy(cfg *config.Config) *driver.Handle {
	if cfg.Proxy.PIDFile == "" {
		return nil
	}
	h, err := driver.ReadPIDFile(cfg.Proxy.PIDFile)
	if err != nil {
		logger.Debug("no proxy from %s: %v", cfg.Proxy.PIDFile, err)
		return nil
	}
	if !h.Alive() {
		return nil
	}
	return h
}

// cmdContext returns the command's context, or Background when called directly
func cmdContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

// CommandResult represents a common result structure for CLI commands
type CommandResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Path    string `json:"path,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Message string `json:"message,omitempty"`
}

// newSuccessResult creates a success result
func newSuccessResult(action string) CommandResult {
	return CommandResult{
		Success: true,
		Action:  action,
	}
}
