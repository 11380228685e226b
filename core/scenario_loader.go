// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gridsentry/pdv-simulator/kb"
	"github.com/gridsentry/pdv-simulator/model"
)

// FleetScenario is a small summary of what was loaded from JSON.
// It’s mainly useful for logging or debugging from main().
type FleetScenario struct {
	NodeIDs    []string
	Requesting int
	PDVConfig  Config
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type fleetScenarioJSON struct {
	BaseStation pointJSON        `json:"base_station"`
	PDV         pdvJSON          `json:"pdv"`
	Nodes       []sensorNodeJSON `json:"nodes"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type pdvJSON struct {
	FullEnergyWh       *float64 `json:"full_energy_wh"`
	PowerRatingW       *float64 `json:"power_rating_w"`
	ApproachSpeedMPerH *float64 `json:"approach_speed_m_per_h"`
	FlightAltitudeM    *float64 `json:"flight_altitude_m"`
	MinChargeRequests  *int     `json:"min_charge_requests"`
	RFToDCEfficiency   *float64 `json:"rf_to_dc_efficiency"`
}

type sensorNodeJSON struct {
	ID             string   `json:"id"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Voltage        float64  `json:"voltage"`
	MaxVoltage     *float64 `json:"max_voltage"`     // optional; defaults to model.DefaultMaxVoltage
	RequestVoltage *float64 `json:"request_voltage"` // optional; defaults to model.DefaultRequestVoltage
	CapacitanceF   *float64 `json:"capacitance_f"`   // optional; defaults to model.DefaultCapacitanceF
	IdlePowerW     *float64 `json:"idle_power_w"`    // optional; defaults to model.DefaultIdlePowerW
}

// LoadFleetScenario reads a JSON scenario from r, populates the Fleet with
// sensor nodes, and returns a summary including the effective PDV
// configuration (defaults overridden by any fields present in the file).
//
// It deliberately fails only on JSON / structural errors. Duplicate node
// IDs surface through the Fleet's own AddNode validation rather than being
// re-checked here.
func LoadFleetScenario(fleet *kb.Fleet, r io.Reader) (*FleetScenario, error) {
	if fleet == nil {
		return nil, fmt.Errorf("LoadFleetScenario: fleet is nil")
	}

	var payload fleetScenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadFleetScenario: decode failed: %w", err)
	}

	cfg := DefaultConfig()
	cfg.BaseStation = model.Point{X: payload.BaseStation.X, Y: payload.BaseStation.Y}
	if v := payload.PDV.FullEnergyWh; v != nil {
		cfg.FullEnergyWh = *v
	}
	if v := payload.PDV.PowerRatingW; v != nil {
		cfg.PowerRatingW = *v
	}
	if v := payload.PDV.ApproachSpeedMPerH; v != nil {
		cfg.ApproachSpeedMPerH = *v
	}
	if v := payload.PDV.FlightAltitudeM; v != nil {
		cfg.FlightAltitudeM = *v
	}
	if v := payload.PDV.MinChargeRequests; v != nil {
		cfg.MinChargeRequests = *v
	}
	if v := payload.PDV.RFToDCEfficiency; v != nil {
		cfg.RFToDCEfficiency = *v
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("LoadFleetScenario: bad pdv config: %w", err)
	}

	result := &FleetScenario{
		NodeIDs:   make([]string, 0, len(payload.Nodes)),
		PDVConfig: cfg,
	}

	for _, jsSN := range payload.Nodes {
		if jsSN.ID == "" {
			return nil, fmt.Errorf("LoadFleetScenario: node with empty id")
		}

		sn := model.NewSensorNode(jsSN.ID, model.Point{X: jsSN.X, Y: jsSN.Y}, jsSN.Voltage)
		if jsSN.MaxVoltage != nil {
			sn.MaxVoltage = *jsSN.MaxVoltage
		}
		if jsSN.RequestVoltage != nil {
			sn.RequestVoltage = *jsSN.RequestVoltage
		}
		if jsSN.CapacitanceF != nil {
			sn.CapacitanceF = *jsSN.CapacitanceF
		}
		if jsSN.IdlePowerW != nil {
			sn.IdlePowerW = *jsSN.IdlePowerW
		}
		// Re-evaluate the request flag against possibly overridden thresholds.
		sn.RequestsCharge = sn.NeedsCharge()

		if err := fleet.AddNode(sn); err != nil {
			return nil, fmt.Errorf("LoadFleetScenario: %w", err)
		}
		result.NodeIDs = append(result.NodeIDs, jsSN.ID)
		if sn.RequestsCharge {
			result.Requesting++
		}
	}

	return result, nil
}
