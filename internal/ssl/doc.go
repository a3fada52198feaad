// Package ssl keeps the certificate bundle fresh through certbot.
//
// Certbot runs in standalone mode for the HTTP-01 challenge. Only one
// process can own a port, so the challenge port depends on whether the
// proxy is currently running: with no proxy certbot binds the primary port
// (80), otherwise the alternate port (8080 by default) and the proxy routes
// /.well-known/acme-challenge/ there.
//
// # Files
//
//	<letsencrypt>/live/<cert-name>/fullchain.pem  written by certbot
//	<letsencrypt>/live/<cert-name>/privkey.pem    written by certbot
//	<letsencrypt>/live/<cert-name>/combined.pem   fullchain + privkey, for HAProxy
//
// # Change detection
//
// Certbot leaves fullchain.pem untouched when the certificate is not due,
// so an attempt is considered to have produced a new certificate only when
// certbot exits 0 and fullchain.pem's modification time is later than the
// moment the attempt started.
//
// # Usage
//
//	cb := ssl.NewCertbot(cfg)
//	out, err := cb.Attempt(ctx, proxyRunning)
//	if err == nil && out.BundleChanged {
//	    err = cb.Assemble()
//	}
//
// # Testing
//
// NewCertbotWithExecutor accepts an executor.MockExecutor and SetClock fixes
// the attempt start time:
//
//	cb := ssl.NewCertbotWithExecutor(cfg, &executor.MockExecutor{})
//	cb.SetClock(func() time.Time { return start })
package ssl
