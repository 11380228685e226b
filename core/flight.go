package core

import (
	"fmt"

	"github.com/gridsentry/pdv-simulator/model"
)

// targetMatchToleranceM is how far a planned waypoint may sit from a node's
// recorded position and still resolve to that node. Planners emit node
// positions verbatim, so this only absorbs float noise.
const targetMatchToleranceM = 1e-6

// FlightStats accumulates the externally visible results of one or more
// flight-simulation runs. Callers pass the same value across runs to total
// a whole charging campaign.
type FlightStats struct {
	// ChargedEnergyWh is the node-side energy delivered by inductive
	// transfer, in watt-hours.
	ChargedEnergyWh float64
	// FlightTimeHours is the vehicle's airborne time across runs.
	FlightTimeHours float64
	// TargetsPlanned counts waypoints handed to the simulator.
	TargetsPlanned int
	// TargetsCharged counts waypoints whose node was fully recharged.
	TargetsCharged int
	// Aborts counts runs that ended in an early return-to-home.
	Aborts int
}

// FlightSimulation walks the planned path in order, recharging the sensor
// node at each waypoint, and finishes with a single unconditional
// return-to-home leg.
//
// Before committing to each waypoint the vehicle checks that its remaining
// energy covers the travel leg, the inductive transfer, and a
// return-to-home leg from that waypoint. Energy for the homeward leg is
// reserved for every waypoint, including the last: the return leg is
// always flown, so its cost must be in hand before the visit. If the
// check fails the remaining path is abandoned and the vehicle returns home
// from its current position. Running out of energy is a normal outcome,
// not an error.
//
// The return value is the task achievement percentage: waypoints charged
// over waypoints planned, times 100. An empty path is vacuously complete
// and reports 100 without any travel. Errors are returned only for
// invalid input: waypoints that resolve to no node, or a degenerate
// configuration that cannot even fund the return leg.
func (p *PDV) FlightSimulation(stats *FlightStats, nodes []*model.SensorNode, path []model.Point) (float64, error) {
	if stats == nil {
		return 0, fmt.Errorf("pdv: nil flight stats")
	}
	planned := len(path)
	stats.TargetsPlanned += planned
	if planned == 0 {
		return 100, nil
	}

	runStart := p.flightTimeH
	charged := 0
	aborted := false

	for _, target := range path {
		sn, err := nodeAt(nodes, target)
		if err != nil {
			return 0, err
		}

		legDist := p.pos.DistanceTo(target)
		legTime := legDist / p.cfg.ApproachSpeedMPerH
		travelCost := p.TravelEnergyCost(legTime)

		transferCost := 0.0
		p.InductiveTransferCost(sn, &transferCost)

		homeTime := target.DistanceTo(p.cfg.BaseStation) / p.cfg.ApproachSpeedMPerH
		homeCost := p.TravelEnergyCost(homeTime)

		if p.remainingWh-(travelCost+transferCost+homeCost) < 0 {
			aborted = true
			break
		}

		// Commit the travel leg, then the transfer. Hover during transfer
		// burns energy at the power rating, so transfer time follows from
		// the transfer cost.
		transferTime := transferCost / p.cfg.PowerRatingW
		p.SetPosition(target)
		if err := p.AddFlightTime(legTime+LegOverheadHours, transferTime); err != nil {
			return 0, err
		}
		if err := p.AddFlightDistance(legDist); err != nil {
			return 0, err
		}
		if err := p.DrainEnergy(travelCost, transferCost); err != nil {
			return 0, err
		}

		stats.ChargedEnergyWh += sn.FullCharge()
		charged++
	}

	if err := p.returnToHome(); err != nil {
		return 0, err
	}

	stats.FlightTimeHours += p.flightTimeH - runStart
	stats.TargetsCharged += charged
	if aborted {
		stats.Aborts++
	}
	return float64(charged) / float64(planned) * 100, nil
}

// SingleStageFlight flies to exactly one target, recharges its node, and
// returns home. It applies the same feasibility and cost accounting as
// FlightSimulation; callers use it to interleave their own bookkeeping
// between hops. The result is 100 if the target was charged, 0 if the
// hop was infeasible and the vehicle went straight home.
func (p *PDV) SingleStageFlight(stats *FlightStats, nodes []*model.SensorNode, target model.Point) (float64, error) {
	return p.FlightSimulation(stats, nodes, []model.Point{target})
}

// returnToHome flies the vehicle from its current position back to the
// base station. It executes exactly once per simulation run, whether the
// path was exhausted or abandoned.
func (p *PDV) returnToHome() error {
	dist := p.pos.DistanceTo(p.cfg.BaseStation)
	t := dist / p.cfg.ApproachSpeedMPerH
	cost := p.TravelEnergyCost(t)

	p.SetPosition(p.cfg.BaseStation)
	if err := p.AddFlightTime(t + LegOverheadHours); err != nil {
		return err
	}
	if err := p.AddFlightDistance(dist); err != nil {
		return err
	}
	if err := p.DrainEnergy(cost); err != nil {
		return fmt.Errorf("pdv: return-to-home unfunded: %w", err)
	}
	return nil
}

// nodeAt resolves a planned waypoint to the sensor node deployed there.
func nodeAt(nodes []*model.SensorNode, pt model.Point) (*model.SensorNode, error) {
	for _, sn := range nodes {
		if sn == nil {
			continue
		}
		if sn.Position.DistanceTo(pt) <= targetMatchToleranceM {
			return sn, nil
		}
	}
	return nil, fmt.Errorf("%w: (%v, %v)", ErrUnknownTarget, pt.X, pt.Y)
}
