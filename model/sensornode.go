package model

import (
	"math"
	"time"
)

// Defaults for supercapacitor-backed sensor nodes. Individual nodes may
// override any of these via the scenario file.
const (
	// DefaultCapacitanceF is the receiving supercapacitor size in farads.
	DefaultCapacitanceF = 3000.0
	// DefaultMaxVoltage is the fully-charged capacitor voltage in volts.
	DefaultMaxVoltage = 5.0
	// DefaultRequestVoltage is the voltage below which a node asks to be
	// recharged.
	DefaultRequestVoltage = 3.3
	// DefaultIdlePowerW is the node's average sensing/telemetry draw in watts.
	DefaultIdlePowerW = 0.05
)

// SensorNode is one deployed wireless sensor. The flight simulator reads its
// position and charge state and, on a successful inductive transfer, updates
// the charge state in place. Node objects are created and owned by the fleet
// store, never by the simulator.
type SensorNode struct {
	ID       string
	Position Point

	// Voltage is the current supercapacitor voltage in volts.
	Voltage float64
	// MaxVoltage is the charge-target voltage in volts.
	MaxVoltage float64
	// RequestVoltage is the threshold below which the node requests charge.
	RequestVoltage float64
	// CapacitanceF is the receiving capacitance in farads.
	CapacitanceF float64
	// IdlePowerW is the self-discharge draw in watts.
	IdlePowerW float64

	// RequestsCharge reports whether the node is still waiting to be
	// serviced this round. Cleared by FullCharge.
	RequestsCharge bool
}

// NewSensorNode constructs a node at the given position with default
// electrical parameters and the given starting voltage.
func NewSensorNode(id string, pos Point, voltage float64) *SensorNode {
	n := &SensorNode{
		ID:             id,
		Position:       pos,
		Voltage:        voltage,
		MaxVoltage:     DefaultMaxVoltage,
		RequestVoltage: DefaultRequestVoltage,
		CapacitanceF:   DefaultCapacitanceF,
		IdlePowerW:     DefaultIdlePowerW,
	}
	n.RequestsCharge = n.NeedsCharge()
	return n
}

// NeedsCharge reports whether the node's voltage has fallen below its
// request threshold.
func (n *SensorNode) NeedsCharge() bool {
	return n.Voltage < n.RequestVoltage
}

// EnergyDeficitWh returns the node-side energy required to bring the
// capacitor from its current voltage to MaxVoltage, in watt-hours:
// E = C * (Vmax - V)^2 / 2, converted from joules.
func (n *SensorNode) EnergyDeficitWh() float64 {
	dv := n.MaxVoltage - n.Voltage
	if dv <= 0 {
		return 0
	}
	return n.CapacitanceF * dv * dv / (2 * 3600)
}

// FullCharge sets the node to its charge-target voltage and clears the
// outstanding request. It returns the node-side energy delivered in Wh.
func (n *SensorNode) FullCharge() float64 {
	delivered := n.EnergyDeficitWh()
	n.Voltage = n.MaxVoltage
	n.RequestsCharge = false
	return delivered
}

// Discharge advances the node's capacitor through d of idle draw:
// V' = sqrt(V^2 - 2*P*t/C), floored at zero. Once the voltage drops
// below the request threshold the node raises its charge request.
func (n *SensorNode) Discharge(d time.Duration) {
	if d <= 0 || n.CapacitanceF <= 0 {
		return
	}
	v2 := n.Voltage*n.Voltage - 2*n.IdlePowerW*d.Seconds()/n.CapacitanceF
	if v2 <= 0 {
		n.Voltage = 0
	} else {
		n.Voltage = math.Sqrt(v2)
	}
	if n.NeedsCharge() {
		n.RequestsCharge = true
	}
}
