package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveRoundRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("NewFlightCollector: %v", err)
	}

	collector.ObserveRound(100, 12.5, 0.25, 8, false)
	collector.ObserveRound(40, 5.0, 0.10, 2, true)

	if got := testutil.ToFloat64(collector.FlightsTotal.WithLabelValues(OutcomeCompleted)); got != 1 {
		t.Fatalf("pdv_flights_total completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.FlightsTotal.WithLabelValues(OutcomeAborted)); got != 1 {
		t.Fatalf("pdv_flights_total aborted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.TargetsChargedTotal); got != 10 {
		t.Fatalf("pdv_targets_charged_total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(collector.EnergyTransferredWh); got != 17.5 {
		t.Fatalf("pdv_energy_transferred_wh_total = %v, want 17.5", got)
	}

	if count := histogramSampleCount(t, reg, "pdv_completion_percent"); count != 2 {
		t.Fatalf("pdv_completion_percent sample_count = %d, want 2", count)
	}
}

func TestMetricsHandlerExposesFleetGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("NewFlightCollector: %v", err)
	}
	collector.SetNodesRequesting(7)
	collector.ObserveRound(100, 1, 0.01, 1, false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"pdv_flights_total",
		"pdv_targets_charged_total",
		"pdv_energy_transferred_wh_total",
		"pdv_flight_time_hours_total",
		"pdv_completion_percent",
		"fleet_nodes_requesting",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "fleet_nodes_requesting 7") {
		t.Fatalf("/metrics output missing gauge value: %s", body)
	}
}

func TestNewFlightCollectorIsReentrant(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("first NewFlightCollector: %v", err)
	}
	second, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("second NewFlightCollector: %v", err)
	}

	// Both collectors drive the same registered series.
	first.TargetsChargedTotal.Inc()
	second.TargetsChargedTotal.Inc()
	if got := testutil.ToFloat64(first.TargetsChargedTotal); got != 2 {
		t.Fatalf("pdv_targets_charged_total = %v, want 2", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	var families []*dto.MetricFamily
	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				return h.GetSampleCount()
			}
		}
	}
	return 0
}
