package cli

import (
	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/executor"
	"github.com/ksyq12/certglue/internal/platform"
)

// MockConfigLoader is a test double for ConfigLoader
type MockConfigLoader struct {
	Cfg       *config.Config
	LoadErr   error
	LoadCalls []config.LoadOptions
}

func (m *MockConfigLoader) Load(opts config.LoadOptions) (*config.Config, error) {
	m.LoadCalls = append(m.LoadCalls, opts)
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Cfg == nil {
		m.Cfg = config.New()
	}
	return m.Cfg, nil
}

// MockDriverFactory is a test double for DriverFactory
type MockDriverFactory struct {
	Driver driver.Driver
	Err    error
}

func (m *MockDriverFactory) Create(cfg config.ProxyConfig, exec executor.CommandExecutor) (driver.Driver, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Driver != nil {
		return m.Driver, nil
	}
	// Return a default mock driver if none provided
	return driver.NewMockDriver(cfg.Driver), nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			ConfigLoader:  &MockConfigLoader{Cfg: config.New()},
			Executor:      &executor.MockExecutor{},
			DriverFactory: &MockDriverFactory{},
		},
	}
}

// WithConfig sets the config for the mock
func (b *MockDependenciesBuilder) WithConfig(cfg *config.Config) *MockDependenciesBuilder {
	b.deps.ConfigLoader = &MockConfigLoader{Cfg: cfg}
	return b
}

// WithConfigLoader sets a custom config loader
func (b *MockDependenciesBuilder) WithConfigLoader(loader ConfigLoader) *MockDependenciesBuilder {
	b.deps.ConfigLoader = loader
	return b
}

// WithExecutor sets the command executor
func (b *MockDependenciesBuilder) WithExecutor(exec executor.CommandExecutor) *MockDependenciesBuilder {
	b.deps.Executor = exec
	return b
}

// WithDriver sets the driver for the mock
func (b *MockDependenciesBuilder) WithDriver(drv driver.Driver) *MockDependenciesBuilder {
	b.deps.DriverFactory = &MockDriverFactory{Driver: drv}
	return b
}

// WithDriverFactory sets a custom driver factory
func (b *MockDependenciesBuilder) WithDriverFactory(factory DriverFactory) *MockDependenciesBuilder {
	b.deps.DriverFactory = factory
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}

// TestHelper provides utilities for CLI tests
type TestHelper struct {
	T interface {
		Helper()
		Cleanup(func())
	}
	OldDeps    *Dependencies
	MockDriver *driver.MockDriver
	MockExec   *executor.MockExecutor
	MockConfig *MockConfigLoader
}

// NewTestHelper installs mock dependencies with a valid config rooted at
// letsencryptDir and restores the originals (and CLI flags) on cleanup.
func NewTestHelper(t interface {
	Helper()
	Cleanup(func())
}, letsencryptDir string) *TestHelper {
	t.Helper()

	cfg := config.NewWithPaths(&platform.PlatformPaths{
		LetsEncryptDir: letsencryptDir,
		HAProxyConfig:  "/usr/local/etc/haproxy/haproxy.cfg",
	})
	cfg.Domains = config.DomainList{"example.com"}
	cfg.Email = "ops@example.com"
	cfg.Proxy.PIDFile = ""

	mockDriver := driver.NewMockDriver("haproxy")
	mockExec := &executor.MockExecutor{}
	mockConfig := &MockConfigLoader{Cfg: cfg}

	helper := &TestHelper{
		T:          t,
		OldDeps:    deps,
		MockDriver: mockDriver,
		MockExec:   mockExec,
		MockConfig: mockConfig,
	}

	deps = NewMockDeps().
		WithDriver(mockDriver).
		WithExecutor(mockExec).
		WithConfigLoader(mockConfig).
		Build()

	t.Cleanup(func() {
		deps = helper.OldDeps
		resetFlags()
	})

	return helper
}

// GetConfig returns the current mock config
func (h *TestHelper) GetConfig() *config.Config {
	return h.MockConfig.Cfg
}

// resetFlags restores package flag variables to their defaults
func resetFlags() {
	jsonOutput = false
	configFile = ""
	flagDomains = ""
	flagEmail = ""
	flagStaging = false
	runMetricsAddr = ""
	runOnce = false
	runAdopt = false
	launchPrevPID = 0
	launchFromPIDFile = false
}
