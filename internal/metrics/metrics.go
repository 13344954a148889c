package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anikino",
		Subsystem: "search",
		Name:      "cache_hits_total",
		Help:      "Searches answered from the local search cache.",
	})

	LiveLookupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anikino",
		Subsystem: "search",
		Name:      "live_lookups_total",
		Help:      "Searches that fell back to a live backend lookup.",
	})

	LiveLookupFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anikino",
		Subsystem: "search",
		Name:      "live_lookup_failures_total",
		Help:      "Live backend lookups that returned an error.",
	})

	StaleResponsesDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anikino",
		Subsystem: "search",
		Name:      "stale_responses_discarded_total",
		Help:      "Search responses dropped because a newer request was issued.",
	})

	CacheRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "anikino",
		Subsystem: "search",
		Name:      "cache_records",
		Help:      "Number of records held by the search cache.",
	})

	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anikino",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Backend requests by method, resource and status class.",
	}, []string{"method", "resource", "status"})

	BackendRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "anikino",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Backend request duration in seconds, retries included.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "resource"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		CacheHitsTotal,
		LiveLookupsTotal,
		LiveLookupFailuresTotal,
		StaleResponsesDiscardedTotal,
		CacheRecords,
		BackendRequestsTotal,
		BackendRequestDuration,
	)
}

// Serve exposes the registry on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
