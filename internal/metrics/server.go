package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ksyq12/certglue/internal/logger"
	"github.com/ksyq12/certglue/internal/supervisor"
)

const shutdownTimeout = 5 * time.Second

// StatusFunc returns the current loop status.
type StatusFunc func() supervisor.Status

// Router builds the HTTP routes: /metrics and /healthz.
func (m *Metrics) Router(status StatusFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(m.httpMetrics)

	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", healthHandler(status))
	return r
}

// healthHandler reports the loop status as JSON; 503 until the proxy runs
// and while renewals are failing.
func healthHandler(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := status()
		code := http.StatusOK
		if !st.Healthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	}
}

// httpMetrics records request duration labelled by chi route pattern.
func (m *Metrics) httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if _, ok := knownPaths[path]; !ok {
			path = "other"
		}
		m.reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

var knownPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
}

// Serve listens on addr and serves handler until ctx is cancelled, then
// shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return serve(ctx, ln, handler)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if stdlog, err := zap.NewStdLogAt(logger.Zap(), zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}

	logger.InfoFields("metrics server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.Debug("metrics server stopped")
	return nil
}
