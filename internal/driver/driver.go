package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ksyq12/certglue/internal/config"
	"github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/executor"
)

// Driver is the interface that all proxy drivers must implement
type Driver interface {
	// Name returns the driver name (haproxy)
	Name() string

	// IsInstalled reports whether the proxy binary is on PATH
	IsInstalled() bool

	// Test validates the proxy config syntax
	Test(ctx context.Context) error

	// Launch starts a new proxy process. When prev is non-nil the new
	// process takes over prev's listeners and tells it to finish.
	// On error the caller keeps prev.
	Launch(ctx context.Context, prev *Handle) (*Handle, error)

	// Refresh returns the handle of the proxy now serving h's lineage,
	// or nil when it is gone.
	Refresh(h *Handle) *Handle
}

// Factory builds a driver from the proxy settings
type Factory func(cfg config.ProxyConfig, exec executor.CommandExecutor) Driver

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a driver factory to the registry
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Get returns a driver factory by name
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New builds the driver named by cfg.Driver
func New(cfg config.ProxyConfig, exec executor.CommandExecutor) (Driver, error) {
	f, ok := Get(cfg.Driver)
	if !ok {
		return nil, errors.Configuration(fmt.Sprintf("unknown proxy driver %q (available: %v)", cfg.Driver, Available()))
	}
	return f(cfg, exec), nil
}

// Available returns all registered driver names
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
