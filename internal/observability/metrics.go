package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FlightCollector bundles Prometheus metrics for PDV charging rounds and
// provides a ready-to-serve /metrics handler.
type FlightCollector struct {
	gatherer prometheus.Gatherer

	FlightsTotal         *prometheus.CounterVec
	TargetsChargedTotal  prometheus.Counter
	EnergyTransferredWh  prometheus.Counter
	FlightTimeHoursTotal prometheus.Counter
	CompletionPercent    prometheus.Histogram
	NodesRequesting      prometheus.Gauge
}

// Flight outcome label values for FlightsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// NewFlightCollector registers the flight metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewFlightCollector(reg prometheus.Registerer) (*FlightCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	flights := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_flights_total",
		Help: "Total number of PDV charging rounds, labeled by outcome (completed or aborted).",
	}, []string{"outcome"})
	flights, err := registerCounterVec(reg, flights, "pdv_flights_total")
	if err != nil {
		return nil, err
	}

	targets, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pdv_targets_charged_total",
		Help: "Total number of sensor nodes fully recharged by the PDV.",
	}), "pdv_targets_charged_total")
	if err != nil {
		return nil, err
	}

	energy, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pdv_energy_transferred_wh_total",
		Help: "Node-side energy delivered by inductive transfer, in watt-hours.",
	}), "pdv_energy_transferred_wh_total")
	if err != nil {
		return nil, err
	}

	flightTime, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pdv_flight_time_hours_total",
		Help: "Cumulative PDV airborne time across rounds, in hours.",
	}), "pdv_flight_time_hours_total")
	if err != nil {
		return nil, err
	}

	completion := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdv_completion_percent",
		Help:    "Task achievement percentage per charging round.",
		Buckets: []float64{0, 10, 25, 50, 75, 90, 99, 100},
	})
	completion, err = registerHistogram(reg, completion, "pdv_completion_percent")
	if err != nil {
		return nil, err
	}

	requesting, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_nodes_requesting",
		Help: "Current number of sensor nodes requesting charge.",
	}), "fleet_nodes_requesting")
	if err != nil {
		return nil, err
	}

	return &FlightCollector{
		gatherer:             gatherer,
		FlightsTotal:         flights,
		TargetsChargedTotal:  targets,
		EnergyTransferredWh:  energy,
		FlightTimeHoursTotal: flightTime,
		CompletionPercent:    completion,
		NodesRequesting:      requesting,
	}, nil
}

// ObserveRound records the results of one charging round.
func (c *FlightCollector) ObserveRound(completionPct, chargedWh, flightTimeH float64, targetsCharged int, aborted bool) {
	if c == nil {
		return
	}
	outcome := OutcomeCompleted
	if aborted {
		outcome = OutcomeAborted
	}
	if c.FlightsTotal != nil {
		c.FlightsTotal.WithLabelValues(outcome).Inc()
	}
	if c.TargetsChargedTotal != nil {
		c.TargetsChargedTotal.Add(float64(targetsCharged))
	}
	if c.EnergyTransferredWh != nil {
		c.EnergyTransferredWh.Add(chargedWh)
	}
	if c.FlightTimeHoursTotal != nil {
		c.FlightTimeHoursTotal.Add(flightTimeH)
	}
	if c.CompletionPercent != nil {
		c.CompletionPercent.Observe(completionPct)
	}
}

// SetNodesRequesting updates the outstanding-request gauge.
func (c *FlightCollector) SetNodesRequesting(n int) {
	if c == nil || c.NodesRequesting == nil {
		return
	}
	c.NodesRequesting.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlightCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
