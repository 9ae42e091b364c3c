// Package metrics records operation outcomes for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pinrunner/pkg/logger"
)

const namespace = "pinrunner"

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	logins     *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	downloads  *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Site operations by name and outcome status.",
		}, []string{"operation", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of site operations, including jittered waits.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by terminal state.",
		}, []string{"state"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_paths_total",
			Help:      "Optional legs that fell back to their default.",
		}, []string{"operation", "path"}),
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Image downloads by result.",
		}, []string{"result"}),
	}
}

// Operation counts one outcome
func (r *Recorder) Operation(name, status string, took time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(name, status).Inc()
	r.duration.WithLabelValues(name).Observe(took.Seconds())
}

// Login counts one login by terminal state
func (r *Recorder) Login(state string) {
	if r == nil {
		return
	}
	r.logins.WithLabelValues(state).Inc()
}

// Fallback counts a default leg being taken
func (r *Recorder) Fallback(operation, path string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(operation, path).Inc()
}

// Download counts one image download
func (r *Recorder) Download(result string) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(result).Inc()
}

// Serve exposes gatherer on addr at /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Component(log, "metrics").InfoWithFields("serving metrics", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
