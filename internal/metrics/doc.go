// Package metrics exposes loop activity to Prometheus and a health probe.
//
// Metrics implements supervisor.Recorder and keeps its collectors on a
// private registry. Router mounts:
//
//	GET /metrics   Prometheus text format
//	GET /healthz   JSON supervisor.Status; 200 when the last attempt
//	               succeeded and a proxy is running, otherwise 503
//
// Exported series (all prefixed certglue_):
//
//	renewal_attempts_total{result}
//	proxy_launches_total{result}
//	last_success_timestamp_seconds
//	last_change_timestamp_seconds
//	certificate_expiry_timestamp_seconds
//	proxy_pid
//	consecutive_failures
package metrics
