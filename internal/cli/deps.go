package cli

import (
	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/supervisor"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	ConfigLoader  ConfigLoader
	Executor      executor.CommandExecutor
	DriverFactory DriverFactory

	// Sleep replaces the loop's sleep between iterations; nil uses a timer.
	Sleep supervisor.SleepFunc
}

// ConfigLoader handles configuration loading
type ConfigLoader interface {
	Load(opts config.LoadOptions) (*config.Config, error)
}

// DriverFactory creates driver instances
type DriverFactory interface {
	Create(cfg config.ProxyConfig, exec executor.CommandExecutor) (driver.Driver, error)
}

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	ConfigLoader:  &realConfigLoader{},
	Executor:      executor.NewSystemExecutor(),
	DriverFactory: &realDriverFactory{},
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to existing functions

type realConfigLoader struct{}

func (r *realConfigLoader) Load(opts config.LoadOptions) (*config.Config, error) {
	return config.Load(opts)
}

type realDriverFactory struct{}

func (r *realDriverFactory) Create(cfg config.ProxyConfig, exec executor.CommandExecutor) (driver.Driver, error) {
	return driver.New(cfg, exec)
}
