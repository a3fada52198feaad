package driver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// MockDriver is a test double for Driver interface
type MockDriver struct {
	name string

	// Function mocks - set these to customize behavior
	IsInstalledFunc func() bool
	TestFunc        func() error
	LaunchFunc      func(prev *Handle) (*Handle, error)
	RefreshFunc     func(h *Handle) *Handle

	// Call tracking - check these to verify interactions
	TestCalls   int
	LaunchCalls []*Handle

	nextPID int
}

// NewMockDriver creates a new MockDriver whose launches hand out PIDs from 2000
func NewMockDriver(name string) *MockDriver {
	return &MockDriver{
		name:        name,
		LaunchCalls: make([]*Handle, 0),
	}
}

// Name returns the driver name
func (m *MockDriver) Name() string {
	return m.name
}

// IsInstalled invokes the mock function if set
func (m *MockDriver) IsInstalled() bool {
	if m.IsInstalledFunc != nil {
		return m.IsInstalledFunc()
	}
	return true
}

// Test records the call and invokes the mock function if set
func (m *MockDriver) Test(ctx context.Context) error {
	m.TestCalls++
	if m.TestFunc != nil {
		return m.TestFunc()
	}
	return nil
}

// Launch records the previous handle and invokes the mock function if set
func (m *MockDriver) Launch(ctx context.Context, prev *Handle) (*Handle, error) {
	m.LaunchCalls = append(m.LaunchCalls, prev)
	if m.LaunchFunc != nil {
		return m.LaunchFunc(prev)
	}
	if m.nextPID == 0 {
		m.nextPID = 2000
	}
	h := &Handle{PID: m.nextPID, Launcher: m.nextPID, Started: time.Now()}
	m.nextPID++
	return h, nil
}

// Refresh invokes the mock function if set, otherwise keeps h while it is alive
func (m *MockDriver) Refresh(h *Handle) *Handle {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(h)
	}
	if h.Alive() {
		return h
	}
	return nil
}

// Reset clears all call tracking
func (m *MockDriver) Reset() {
	m.LaunchCalls = make([]*Handle, 0)
	m.TestCalls = 0
}

// FakeProcessTable is an in-memory ProcessTable for tests.
// PIDs not listed are treated as nonexistent.
type FakeProcessTable struct {
	mu     sync.Mutex
	alive  map[int]bool
	exited map[int]int
}

// NewFakeProcessTable creates an empty process table
func NewFakeProcessTable() *FakeProcessTable {
	return &FakeProcessTable{
		alive:  make(map[int]bool),
		exited: make(map[int]int),
	}
}

// SetAlive marks pid as a running process
func (f *FakeProcessTable) SetAlive(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = true
	delete(f.exited, pid)
}

// SetExited marks pid as an exited child with status, reapable once
func (f *FakeProcessTable) SetExited(pid, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, pid)
	f.exited[pid] = status
}

// Kill makes pid disappear
func (f *FakeProcessTable) Kill(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, pid)
	delete(f.exited, pid)
}

// Signal0 implements ProcessTable
func (f *FakeProcessTable) Signal0(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alive[pid] {
		return nil
	}
	return unix.ESRCH
}

// Wait implements ProcessTable
func (f *FakeProcessTable) Wait(pid int) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.exited[pid]; ok {
		delete(f.exited, pid)
		return true, status, nil
	}
	if f.alive[pid] {
		return false, 0, nil
	}
	return false, 0, unix.ECHILD
}
