// Package metrics exposes responder counters over HTTP.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts exchanges on a private registry.
type Recorder struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	candidates prometheus.Histogram
	executions *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wydy_requests_total",
				Help: "Phrases answered, by response code",
			},
			[]string{"response"},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wydy_candidates_resolved",
				Help:    "Candidates surviving location filtering per phrase",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 64, 254},
			},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wydy_executions_total",
				Help: "Chosen actions, by executing side and result",
			},
			[]string{"location", "result"},
		),
	}
	r.registry.MustRegister(
		r.requests,
		r.candidates,
		r.executions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Request(response string) {
	r.requests.WithLabelValues(response).Inc()
}

func (r *Recorder) Resolved(n int) {
	r.candidates.Observe(float64(n))
}

func (r *Recorder) Execution(location, result string) {
	r.executions.WithLabelValues(location, result).Inc()
}

// Gatherer exposes the registry for tests and embedding.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler routes /metrics and /healthz.
func (r *Recorder) Handler() http.Handler {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return router
}

// ServeListener serves on an existing listener until ctx is cancelled.
func (r *Recorder) ServeListener(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	server := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("metrics listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
