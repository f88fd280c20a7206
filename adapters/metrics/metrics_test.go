package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artpar/schemagate/adapters/metrics"
	"github.com/artpar/schemagate/ports"
)

var (
	_ ports.DerivationObserver = (*metrics.Collector)(nil)
	_ ports.RenderObserver     = (*metrics.Collector)(nil)
)

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	// Verify all metrics are initialized
	if m.SchemasDerived == nil {
		t.Error("SchemasDerived is nil")
	}
	if m.DerivationDuration == nil {
		t.Error("DerivationDuration is nil")
	}
	if m.CacheLookups == nil {
		t.Error("CacheLookups is nil")
	}
	if m.DocumentsRendered == nil {
		t.Error("DocumentsRendered is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func TestSchemaDerived(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.SchemaDerived("foo:v1", "object", time.Millisecond)
	m.SchemaDerived("foo:v1", "object", 2*time.Millisecond)
	m.SchemaDerived("foo:v1", "enum", time.Millisecond)

	if got := testutil.ToFloat64(m.SchemasDerived.WithLabelValues("foo:v1", "object")); got != 2 {
		t.Errorf("expected 2 object derivations, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "schemagate_derivation_duration_seconds" {
			found = true
			h := f.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 3 {
				t.Errorf("expected 3 observations, got %d", h.GetSampleCount())
			}
		}
	}
	if !found {
		t.Error("schemagate_derivation_duration_seconds metric not found")
	}
}

func TestCacheLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.CacheLookup("foo:v1", true)
	m.CacheLookup("foo:v1", true)
	m.CacheLookup("foo:v1", false)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("foo:v1", "hit")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("foo:v1", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestUnsupportedAndFallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.UnsupportedType("foo:v1")
	m.MapFallback("foo:v1", "forced")
	m.MapFallback("foo:v1", "unsupported_key")
	m.MapFallback("foo:v1", "unsupported_key")

	if got := testutil.ToFloat64(m.UnsupportedTypes.WithLabelValues("foo:v1")); got != 1 {
		t.Errorf("expected 1 unsupported type, got %v", got)
	}
	if got := testutil.CollectAndCount(m.MapFallbacks); got != 2 {
		t.Errorf("expected 2 fallback series, got %d", got)
	}
}

func TestDocumentRendered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.DocumentRendered("foo:v1", "openapi", 5*time.Millisecond, nil)
	m.DocumentRendered("foo:v1", "openapi", 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.DocumentsRendered.WithLabelValues("foo:v1", "openapi", "ok")); got != 1 {
		t.Errorf("expected 1 ok render, got %v", got)
	}
	if got := testutil.ToFloat64(m.DocumentsRendered.WithLabelValues("foo:v1", "openapi", "error")); got != 1 {
		t.Errorf("expected 1 failed render, got %v", got)
	}
}

func TestConfigReloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	at := time.Unix(1700000000, 0)
	m.ConfigReloaded(at, nil)
	m.ConfigReloaded(at, nil)
	m.ConfigReloaded(at, errors.New("bad yaml"))

	if got := testutil.ToFloat64(m.ConfigReloads); got != 2 {
		t.Errorf("expected 2 reloads, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConfigReloadErrors); got != 1 {
		t.Errorf("expected 1 reload error, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConfigLastReload); got != 1700000000 {
		t.Errorf("expected last reload timestamp, got %v", got)
	}
}

func TestRequestServed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestServed("GET", "/apis/{name}/{version}", "2xx", 3*time.Millisecond)
	m.RequestServed("GET", "/apis/{name}/{version}", "2xx", 3*time.Millisecond)
	m.RequestServed("GET", "/apis/{name}/{version}", "4xx", time.Millisecond)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/apis/{name}/{version}", "2xx")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.CollectAndCount(m.RequestsTotal); got != 2 {
		t.Errorf("expected 2 request series, got %d", got)
	}
}
