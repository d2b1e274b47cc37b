package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for one process. Each instance
// owns its registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	Utterances       prometheus.Counter
	Activations      prometheus.Counter
	Timeouts         prometheus.Counter
	Commands         *prometheus.CounterVec
	FuzzyConfidence  prometheus.Histogram
	ActivationDelay  prometheus.Histogram
	RegistryCommands prometheus.Gauge
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Utterances: f.NewCounter(prometheus.CounterOpts{
			Name: "voxcmd_utterances_total",
			Help: "Total number of non-empty utterances received",
		}),
		Activations: f.NewCounter(prometheus.CounterOpts{
			Name: "voxcmd_activations_total",
			Help: "Total number of activation word detections",
		}),
		Timeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "voxcmd_activation_timeouts_total",
			Help: "Total number of activations that expired without a command",
		}),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxcmd_commands_total",
				Help: "Total number of resolved commands by match kind",
			},
			[]string{"kind"},
		),
		FuzzyConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxcmd_fuzzy_confidence",
			Help:    "Similarity score of fuzzy matches",
			Buckets: []float64{0.85, 0.9, 0.95, 0.99, 1},
		}),
		ActivationDelay: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxcmd_activation_delay_seconds",
			Help:    "Time between activation and the command",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 6),
		}),
		RegistryCommands: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxcmd_registry_commands",
			Help: "Number of commands in the active registry",
		}),
	}
}

// Registry returns the Prometheus registry holding the instruments.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
