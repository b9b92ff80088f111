package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/scheduling/scheduler"
)

type jobStatus struct {
	ID      string    `json:"id"`
	Expr    string    `json:"expr"`
	Next    time.Time `json:"next"`
	Prev    time.Time `json:"prev,omitempty"`
	Runs    int64     `json:"runs"`
	Skips   int64     `json:"skips"`
	Failed  int64     `json:"failed"`
	Running bool      `json:"running"`
	LastErr string    `json:"last_error,omitempty"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Jobs   []jobStatus `json:"jobs"`
}

// newRouter serves /metrics from reg and /healthz from the job list.
func newRouter(reg *prometheus.Registry, jobs func() []scheduler.JobInfo) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Jobs: []jobStatus{}}
		for _, j := range jobs() {
			js := jobStatus{
				ID: j.ID, Expr: j.Expr, Next: j.Next, Prev: j.Prev,
				Runs: j.Runs, Skips: j.Skips, Failed: j.Failed, Running: j.Running,
			}
			if j.LastErr != nil {
				js.LastErr = j.LastErr.Error()
			}
			resp.Jobs = append(resp.Jobs, js)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return r
}

const shutdownTimeout = 5 * time.Second

// metricsServer runs the /metrics and /healthz listener in the background.
// A nil *metricsServer is valid and does nothing.
type metricsServer struct {
	srv  *http.Server
	log  zerolog.Logger
	errs chan error
	done chan struct{}
}

// serveMetrics starts serving h on addr. It returns nil when addr is empty.
func serveMetrics(addr string, h http.Handler, log zerolog.Logger) *metricsServer {
	if addr == "" {
		return nil
	}
	m := &metricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log:  log,
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		m.log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.errs <- err
		}
	}()
	return m
}

// Err reports a listener failure. It never fires for a nil server.
func (m *metricsServer) Err() <-chan error {
	if m == nil {
		return nil
	}
	return m.errs
}

// Shutdown stops the listener and waits for its goroutine to return.
func (m *metricsServer) Shutdown() {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.log.Error().Err(err).Msg("metrics server shutdown")
	}
	<-m.done
}
