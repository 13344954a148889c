package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	CacheHitsTotal.Inc()
	BackendRequestsTotal.WithLabelValues("GET", "anime", "2xx").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"anikino_search_cache_hits_total",
		"anikino_backend_requests_total",
	} {
		if !names[want] {
			t.Errorf("metric %q not gathered", want)
		}
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(reg)
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(StaleResponsesDiscardedTotal)
	StaleResponsesDiscardedTotal.Inc()
	if got := testutil.ToFloat64(StaleResponsesDiscardedTotal); got != before+1 {
		t.Errorf("stale counter = %v, want %v", got, before+1)
	}
}
