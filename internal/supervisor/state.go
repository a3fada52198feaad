package supervisor

import (
	"time"

	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/ssl"
)

// State is the position of the control loop
type State int

const (
	Idle State = iota
	Attempting
	SucceededNoChange
	SucceededChanged
	Failed
)

var stateNames = map[State]string{
	Idle:              "idle",
	Attempting:        "attempting",
	SucceededNoChange: "succeeded_no_change",
	SucceededChanged:  "succeeded_changed",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is the result of one Step.
type Transition struct {
	State   State
	Sleep   time.Duration
	Err     error
	Handle  *driver.Handle
	Outcome ssl.Outcome

	// Launched is set when a proxy launch was attempted in this step.
	Launched bool
}

// Status is a point-in-time view of the loop, safe to read from other goroutines.
type Status struct {
	State               State          `json:"state"`
	Proxy               *driver.Handle `json:"proxy,omitempty"`
	Attempts            int            `json:"attempts"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastAttempt         time.Time      `json:"last_attempt,omitzero"`
	LastSuccess         time.Time      `json:"last_success,omitzero"`
	LastChange          time.Time      `json:"last_change,omitzero"`
	NextAttempt         time.Time      `json:"next_attempt,omitzero"`
	LastError           string         `json:"last_error,omitempty"`
}

// Healthy reports whether the last attempt succeeded and a proxy is held.
func (s Status) Healthy() bool {
	return s.ConsecutiveFailures == 0 && s.Proxy != nil
}
