package core

import (
	"errors"
	"fmt"

	"github.com/gridsentry/pdv-simulator/model"
)

// LegOverheadHours is the fixed per-leg flight overhead in hours
// (takeoff, landing and hover stabilisation). It is charged on every
// committed leg, in both time and energy.
const LegOverheadHours = 5.6e-3

// Validation errors for the PDV mutators and configuration. Infeasible
// flights are not errors; these cover numeric misuse only.
var (
	ErrNegativeDelta = errors.New("pdv: negative delta")
	ErrZeroSpeed     = errors.New("pdv: approach speed must be positive")
	ErrUnknownTarget = errors.New("pdv: no sensor node at target position")
)

// Config holds the fixed vehicle parameters. It is not mutated during a
// simulation run.
type Config struct {
	// FullEnergyWh is the onboard battery capacity in watt-hours.
	FullEnergyWh float64
	// PowerRatingW is the vehicle's power draw in watts, charged against
	// all airborne time including transfer hover.
	PowerRatingW float64
	// ApproachSpeedMPerH is the maximum approach speed in metres per hour.
	ApproachSpeedMPerH float64
	// FlightAltitudeM is the cruise altitude in metres.
	FlightAltitudeM float64
	// MinChargeRequests is the smallest number of outstanding charge
	// requests that justifies dispatching the vehicle for a task.
	MinChargeRequests int
	// RFToDCEfficiency is the inductive-transfer conversion efficiency,
	// in (0, 1].
	RFToDCEfficiency float64
	// BaseStation is the fixed departure and return-to-home point.
	BaseStation model.Point
}

// DefaultConfig returns the reference vehicle parameters.
func DefaultConfig() Config {
	return Config{
		FullEnergyWh:       187,
		PowerRatingW:       363.888,
		ApproachSpeedMPerH: 2.16e4,
		FlightAltitudeM:    20,
		MinChargeRequests:  20,
		RFToDCEfficiency:   0.7,
	}
}

func (c Config) validate() error {
	if c.ApproachSpeedMPerH <= 0 {
		return ErrZeroSpeed
	}
	if c.FullEnergyWh <= 0 {
		return fmt.Errorf("pdv: battery capacity must be positive, got %v", c.FullEnergyWh)
	}
	if c.PowerRatingW <= 0 {
		return fmt.Errorf("pdv: power rating must be positive, got %v", c.PowerRatingW)
	}
	if c.RFToDCEfficiency <= 0 || c.RFToDCEfficiency > 1 {
		return fmt.Errorf("pdv: rf-to-dc efficiency must be in (0,1], got %v", c.RFToDCEfficiency)
	}
	if c.MinChargeRequests < 0 {
		return fmt.Errorf("pdv: minimum charge requests must be non-negative, got %d", c.MinChargeRequests)
	}
	return nil
}

// PDV is the powered delivery vehicle: a drone that recharges deployed
// sensor nodes by inductive power transfer. One PDV value represents one
// vehicle and must not be shared between concurrent simulation runs.
type PDV struct {
	cfg Config

	pos         model.Point
	flightTimeH float64
	remainingWh float64
	flightDistM float64
}

// New constructs a PDV at the base station with a full battery.
func New(cfg Config) (*PDV, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &PDV{
		cfg:         cfg,
		pos:         cfg.BaseStation,
		remainingWh: cfg.FullEnergyWh,
	}, nil
}

// Reset restores the vehicle to its initial state: parked at the base
// station, full battery, zero flight time and distance. Callers must reset
// between independent simulation runs.
func (p *PDV) Reset() {
	p.pos = p.cfg.BaseStation
	p.flightTimeH = 0
	p.remainingWh = p.cfg.FullEnergyWh
	p.flightDistM = 0
}

// Config returns the vehicle's fixed parameters.
func (p *PDV) Config() Config { return p.cfg }

// Position returns the vehicle's current position.
func (p *PDV) Position() model.Point { return p.pos }

// FlightTimeHours returns the cumulative airborne time in hours.
func (p *PDV) FlightTimeHours() float64 { return p.flightTimeH }

// RemainingEnergyWh returns the remaining battery energy in watt-hours.
func (p *PDV) RemainingEnergyWh() float64 { return p.remainingWh }

// FlightDistanceM returns the cumulative flight distance in metres.
func (p *PDV) FlightDistanceM() float64 { return p.flightDistM }

// SetPosition moves the vehicle to pt. Time, distance and energy are
// accounted separately by the flight loop.
func (p *PDV) SetPosition(pt model.Point) { p.pos = pt }

// AddFlightTime adds the given time deltas (hours) to the flight clock.
// Deltas must be non-negative.
func (p *PDV) AddFlightTime(deltas ...float64) error {
	sum, err := sumDeltas(deltas)
	if err != nil {
		return err
	}
	p.flightTimeH += sum
	return nil
}

// DrainEnergy subtracts the given energy deltas (Wh) from the battery.
// Deltas must be non-negative and must not drive the battery negative;
// the flight loop's feasibility check is expected to prevent the latter.
func (p *PDV) DrainEnergy(deltas ...float64) error {
	sum, err := sumDeltas(deltas)
	if err != nil {
		return err
	}
	if p.remainingWh-sum < 0 {
		return fmt.Errorf("pdv: drain of %.3f Wh exceeds remaining %.3f Wh", sum, p.remainingWh)
	}
	p.remainingWh -= sum
	return nil
}

// AddFlightDistance adds d metres to the cumulative flight distance.
func (p *PDV) AddFlightDistance(d float64) error {
	if d < 0 {
		return fmt.Errorf("%w: distance %v m", ErrNegativeDelta, d)
	}
	p.flightDistM += d
	return nil
}

func sumDeltas(deltas []float64) (float64, error) {
	sum := 0.0
	for _, d := range deltas {
		if d < 0 {
			return 0, fmt.Errorf("%w: %v", ErrNegativeDelta, d)
		}
		sum += d
	}
	return sum, nil
}

// TravelEnergyCost returns the energy in Wh consumed by a travel leg of
// t hours: E = P * (t + overhead).
func (p *PDV) TravelEnergyCost(t float64) float64 {
	return p.cfg.PowerRatingW * (t + LegOverheadHours)
}

// InductiveTransferCost accumulates into e the vehicle-side energy cost in
// Wh of fully recharging sn by inductive power transfer:
// E = C * (Vmax - V)^2 / (2 * eta * 3600). The accumulator form lets the
// caller update the node's own bookkeeping at the same call site.
func (p *PDV) InductiveTransferCost(sn *model.SensorNode, e *float64) {
	if sn == nil || e == nil {
		return
	}
	dv := sn.MaxVoltage - sn.Voltage
	if dv <= 0 {
		return
	}
	*e += sn.CapacitanceF * dv * dv / (2 * p.cfg.RFToDCEfficiency * 3600)
}

// TaskCheck reports whether enough nodes still request charge to justify
// dispatching the vehicle for another task. A false result is the normal
// end-of-work signal, not an error.
func (p *PDV) TaskCheck(nodes []*model.SensorNode) bool {
	requesting := 0
	for _, sn := range nodes {
		if sn != nil && sn.RequestsCharge {
			requesting++
		}
	}
	return requesting > p.cfg.MinChargeRequests
}
