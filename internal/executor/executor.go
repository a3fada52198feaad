package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// CommandExecutor is an interface for executing system commands
type CommandExecutor interface {
	// Execute runs a command to completion and returns its combined output.
	// A nonzero exit is reported as an error carrying the exit code.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start launches a command without waiting for it and returns its PID.
	// The caller owns reaping the process.
	Start(name string, args ...string) (int, error)

	// LookPath searches for an executable in the directories named by the PATH
	LookPath(file string) (string, error)
}

// SystemExecutor implements CommandExecutor using os/exec
type SystemExecutor struct{}

// NewSystemExecutor creates a new SystemExecutor
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs a command and returns combined output
func (e *SystemExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Start runs the command in its own process group with inherited stdio.
// The os.Process is released so the PID can be reaped with wait4 later.
func (e *SystemExecutor) Start(name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", name, err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// LookPath searches for an executable
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// exitCoder is satisfied by *exec.ExitError and ExitError.
type exitCoder interface {
	ExitCode() int
}

// ExitCode extracts the process exit status from an Execute error.
// It returns 0 for nil and -1 when the command never ran to exit.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

// ExitError is a synthetic nonzero exit, used by test doubles.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the synthetic exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// MockExecutor is a mock implementation for testing
type MockExecutor struct {
	ExecuteFunc  func(name string, args ...string) ([]byte, error)
	StartFunc    func(name string, args ...string) (int, error)
	LookPathFunc func(file string) (string, error)
	Calls        []CommandCall
	StartCalls   []CommandCall

	nextPID int
}

// CommandCall records a command execution for verification
type CommandCall struct {
	Name string
	Args []string
}

// Execute calls the mock function
func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, args...)
	}
	return []byte(""), nil
}

// Start calls the mock function, or hands out increasing fake PIDs from 1000
func (m *MockExecutor) Start(name string, args ...string) (int, error) {
	m.StartCalls = append(m.StartCalls, CommandCall{Name: name, Args: args})
	if m.StartFunc != nil {
		return m.StartFunc(name, args...)
	}
	if m.nextPID == 0 {
		m.nextPID = 1000
	}
	pid := m.nextPID
	m.nextPID++
	return pid, nil
}

// LookPath calls the mock function
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}
