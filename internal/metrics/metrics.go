package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ksyq12/certglue/internal/driver"
	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/ssl"
	"github.com/ksyq12/certglue/internal/supervisor"
)

const namespace = "certglue"

// Launch results.
const (
	LaunchOK     = "ok"
	LaunchFailed = "failed"
)

// Metrics holds the certglue collectors on a private registry and
// implements supervisor.Recorder.
type Metrics struct {
	reg   *prometheus.Registry
	paths ssl.CertPaths
	now   func() time.Time

	attempts            *prometheus.CounterVec
	launches            *prometheus.CounterVec
	lastSuccess         prometheus.Gauge
	lastChange          prometheus.Gauge
	certExpiry          prometheus.Gauge
	proxyPID            prometheus.Gauge
	consecutiveFailures prometheus.Gauge
	reqDuration         *prometheus.HistogramVec
}

// New creates the collectors. Certificate expiry is read from paths after
// each successful attempt.
func New(paths ssl.CertPaths) *Metrics {
	m := &Metrics{
		reg:   prometheus.NewRegistry(),
		paths: paths,
		now:   time.Now,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_attempts_total",
			Help:      "Renewal attempts by resulting state.",
		}, []string{"result"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_launches_total",
			Help:      "Proxy launches by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful renewal attempt.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time the proxy last switched to a new certificate.",
		}),
		certExpiry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificate_expiry_timestamp_seconds",
			Help:      "NotAfter of the installed certificate.",
		}),
		proxyPID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proxy_pid",
			Help:      "PID of the supervised proxy, 0 when none.",
		}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Failed attempts since the last success.",
		}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of metrics and health requests.",
			Buckets:   []float64{0.005, 0.01, 0.1, 0.5, 1},
		}, []string{"path", "method", "status"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.attempts,
		m.launches,
		m.lastSuccess,
		m.lastChange,
		m.certExpiry,
		m.proxyPID,
		m.consecutiveFailures,
		m.reqDuration,
	)

	// Pre-create label values so the series exist before the first attempt.
	for _, s := range []supervisor.State{supervisor.SucceededNoChange, supervisor.SucceededChanged, supervisor.Failed} {
		m.attempts.WithLabelValues(s.String())
	}
	m.launches.WithLabelValues(LaunchOK)
	m.launches.WithLabelValues(LaunchFailed)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns an http.Handler that exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RecordAttempt implements supervisor.Recorder.
func (m *Metrics) RecordAttempt(tr supervisor.Transition) {
	m.attempts.WithLabelValues(tr.State.String()).Inc()
	m.SetProxy(tr.Handle)

	if tr.State == supervisor.Failed {
		m.consecutiveFailures.Inc()
		return
	}
	now := m.now()
	m.consecutiveFailures.Set(0)
	m.lastSuccess.Set(float64(now.Unix()))
	if tr.State == supervisor.SucceededChanged && tr.Err == nil {
		m.lastChange.Set(float64(now.Unix()))
	}
	m.ObserveCertificate()
}

// RecordLaunch implements supervisor.Recorder.
func (m *Metrics) RecordLaunch(h *driver.Handle, err error) {
	if err != nil {
		m.launches.WithLabelValues(LaunchFailed).Inc()
		return
	}
	m.launches.WithLabelValues(LaunchOK).Inc()
	m.SetProxy(h)
}

// SetProxy records the supervised PID.
func (m *Metrics) SetProxy(h *driver.Handle) {
	if h == nil {
		m.proxyPID.Set(0)
		return
	}
	m.proxyPID.Set(float64(h.PID))
}

// ObserveCertificate reads the installed certificate's expiry.
func (m *Metrics) ObserveCertificate() {
	info, err := ssl.Inspect(m.paths)
	if err != nil {
		logger.Debug("cannot read certificate expiry: %v", err)
		return
	}
	m.certExpiry.Set(float64(info.NotAfter.Unix()))
}
