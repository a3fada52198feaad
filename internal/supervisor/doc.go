// Package supervisor composes certificate renewal and proxy handoff into
// the long-running control loop.
//
// Each iteration attempts a renewal, then:
//
//	failed (certbot error, missing chain, bundle error)  sleep RetryDelay
//	succeeded, certificate unchanged                     sleep RenewInterval
//	succeeded, certificate changed                       assemble, launch, sleep RenewInterval
//
// Before each attempt, and after a failed launch, the held handle is
// re-resolved through the driver: a successor named in the pid file
// replaces it, and it is dropped only when no proxy process remains, so
// certbot goes back to the primary challenge port.
//
// With the exponential retry policy consecutive failures double the sleep
// up to RetryMaxDelay; any success resets it.
package supervisor
