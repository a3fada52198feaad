package supervisor

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ksyq12/certglue/internal/config"
)

// newRetryBackOff returns the schedule for sleeps after a failed iteration.
// Both policies are deterministic and never give up.
func newRetryBackOff(policy string, base, max time.Duration) backoff.BackOff {
	if policy != config.RetryExponential {
		return backoff.NewConstantBackOff(base)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
