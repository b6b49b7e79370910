package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/texlify/texlify/adapters/metrics"
)

func TestCollectorRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewWithRegistry(reg)

	c.AdmissionDecisions.WithLabelValues("deny", "rate_limited", "free").Inc()
	c.AdmissionDecisions.WithLabelValues("allow", "", "pro").Add(2)
	c.LimiterDenials.WithLabelValues("anonymous_conversions").Inc()
	c.ConfigReloads.Inc()

	if got := testutil.ToFloat64(c.AdmissionDecisions.WithLabelValues("deny", "rate_limited", "free")); got != 1 {
		t.Fatalf("expected 1 denial, got %v", got)
	}
	if got := testutil.ToFloat64(c.AdmissionDecisions.WithLabelValues("allow", "", "pro")); got != 2 {
		t.Fatalf("expected 2 allows, got %v", got)
	}
	if got := testutil.ToFloat64(c.ConfigReloads); got != 1 {
		t.Fatalf("expected 1 reload, got %v", got)
	}
}

func TestCollectorIsolatedRegistries(t *testing.T) {
	a := metrics.NewWithRegistry(prometheus.NewRegistry())
	b := metrics.NewWithRegistry(prometheus.NewRegistry())

	a.LimiterDenials.WithLabelValues("save_conversion").Inc()
	if got := testutil.ToFloat64(b.LimiterDenials.WithLabelValues("save_conversion")); got != 0 {
		t.Fatalf("registries should be isolated, got %v", got)
	}
}
