// Package config loads the certglue runtime configuration.
//
// The Identity (domains, contact e-mail, staging flag) is the contract with
// the container environment and is read from DOMAINS, EMAIL and STAGING.
// Everything else has a default and can be tuned through an optional config
// file or CERTGLUE_* variables.
//
// # Precedence
//
// Lowest to highest:
//
//	defaults (platform-detected paths)
//	.env file in the working directory (never overrides the real environment)
//	config file given with --config (YAML, or TOML by .toml extension)
//	environment variables
//	explicitly set command-line flags (applied by the cli package)
//
// # Example config.yaml
//
//	domains:
//	  - example.com
//	  - www.example.com
//	email: ops@example.com
//	staging: true
//	cert_name: certglue
//	renew_interval: 24h
//	retry_delay: 60s
//	retry_policy: exponential
//	proxy:
//	  config_path: /usr/local/etc/haproxy/haproxy.cfg
//	  pid_file: /run/haproxy.pid
//
// # Environment
//
//	DOMAINS="example.com www.example.com"   # comma or whitespace separated
//	EMAIL=ops@example.com
//	STAGING=yes                             # any non-empty value enables staging
//	CERTGLUE_RENEW_INTERVAL=12h
//
// Durations accept Go syntax ("90s", "2h") or plain seconds ("120").
//
// # Validation
//
// Validate reports a CONFIG error (errors.ErrConfigInvalid) for missing
// domains or e-mail and for inconsistent tunables. The run command exits
// nonzero before entering the loop when validation fails.
package config
