package core

import (
	"errors"
	"math"
	"testing"

	"github.com/gridsentry/pdv-simulator/model"
)

// lineFleet deploys nodes every 216 m along the +X axis, which at the
// default approach speed of 21600 m/h makes every hop exactly 0.01 h.
func lineFleet(count int, voltage float64) ([]*model.SensorNode, []model.Point) {
	nodes := make([]*model.SensorNode, 0, count)
	path := make([]model.Point, 0, count)
	for i := 1; i <= count; i++ {
		pos := model.Point{X: float64(i) * 216}
		sn := model.NewSensorNode(string(rune('0'+i)), pos, voltage)
		nodes = append(nodes, sn)
		path = append(path, pos)
	}
	return nodes, path
}

func TestFlightSimulationFullPath(t *testing.T) {
	p := newTestPDV(t, nil) // 187 Wh capacity

	// Nodes at full voltage: transfer energy is zero, so flight time is
	// purely travel plus per-leg overhead.
	nodes, path := lineFleet(3, model.DefaultMaxVoltage)

	var stats FlightStats
	pct, err := p.FlightSimulation(&stats, nodes, path)
	if err != nil {
		t.Fatalf("FlightSimulation: %v", err)
	}
	if pct != 100 {
		t.Fatalf("expected 100%% completion, got %v", pct)
	}
	if stats.TargetsCharged != 3 || stats.TargetsPlanned != 3 {
		t.Fatalf("expected 3/3 targets, got %d/%d", stats.TargetsCharged, stats.TargetsPlanned)
	}
	if stats.Aborts != 0 {
		t.Errorf("full path should not count as aborted")
	}

	// Three 0.01 h hops plus the return leg from x=648 (0.03 h), each
	// with the fixed per-leg overhead.
	wantTime := 3*(0.01+LegOverheadHours) + (0.03 + LegOverheadHours)
	if math.Abs(p.FlightTimeHours()-wantTime) > 1e-9 {
		t.Errorf("flight time = %v h, want %v h", p.FlightTimeHours(), wantTime)
	}
	if math.Abs(stats.FlightTimeHours-wantTime) > 1e-9 {
		t.Errorf("stats flight time = %v h, want %v h", stats.FlightTimeHours, wantTime)
	}

	// Energy accounting is consistent with E = P * t.
	wantEnergy := p.Config().FullEnergyWh - p.Config().PowerRatingW*wantTime
	if math.Abs(p.RemainingEnergyWh()-wantEnergy) > 1e-9 {
		t.Errorf("remaining energy = %v Wh, want %v Wh", p.RemainingEnergyWh(), wantEnergy)
	}

	// RTH executed: the vehicle is back at base, having flown out and back.
	if p.Position() != p.Config().BaseStation {
		t.Errorf("expected vehicle at base station, got %v", p.Position())
	}
	if math.Abs(p.FlightDistanceM()-(648+648)) > 1e-9 {
		t.Errorf("flight distance = %v m, want 1296 m", p.FlightDistanceM())
	}
}

func TestFlightSimulationEarlyAbort(t *testing.T) {
	// 15 Wh funds exactly one travel+transfer+return combination on the
	// 216 m spacing: the first visit needs ~11.35 Wh including the
	// reserved return leg, the second would need ~14.99 Wh on top of the
	// ~5.68 Wh already spent.
	p := newTestPDV(t, func(c *Config) { c.FullEnergyWh = 15 })
	nodes, path := lineFleet(3, model.DefaultMaxVoltage)

	var stats FlightStats
	pct, err := p.FlightSimulation(&stats, nodes, path)
	if err != nil {
		t.Fatalf("FlightSimulation: %v", err)
	}
	if stats.TargetsCharged != 1 {
		t.Fatalf("expected exactly 1 target charged, got %d", stats.TargetsCharged)
	}
	if math.Abs(pct-100.0/3.0) > 1e-9 {
		t.Fatalf("expected completion ~33.3%%, got %v", pct)
	}
	if stats.Aborts != 1 {
		t.Errorf("expected 1 abort, got %d", stats.Aborts)
	}
	if p.Position() != p.Config().BaseStation {
		t.Errorf("abort must still end with return-to-home, vehicle at %v", p.Position())
	}
	if p.RemainingEnergyWh() < 0 {
		t.Errorf("remaining energy went negative: %v", p.RemainingEnergyWh())
	}
	// Out 216 m, back 216 m; the second hop was never flown.
	if math.Abs(p.FlightDistanceM()-432) > 1e-9 {
		t.Errorf("flight distance = %v m, want 432 m", p.FlightDistanceM())
	}
}

func TestFlightSimulationReservesReturnForLastTarget(t *testing.T) {
	// 8 Wh covers the outbound leg (~5.68 Wh) but not outbound plus the
	// reserved return (~11.35 Wh). The vehicle must refuse the only
	// target rather than strand itself.
	p := newTestPDV(t, func(c *Config) { c.FullEnergyWh = 8 })
	nodes, path := lineFleet(1, model.DefaultMaxVoltage)

	var stats FlightStats
	pct, err := p.FlightSimulation(&stats, nodes, path)
	if err != nil {
		t.Fatalf("FlightSimulation: %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected 0%% completion, got %v", pct)
	}
	if stats.TargetsCharged != 0 {
		t.Fatalf("expected no targets charged, got %d", stats.TargetsCharged)
	}
	if stats.Aborts != 1 {
		t.Errorf("expected the run to count as aborted")
	}
	// Never left the base station, but the return leg still ticks the
	// per-leg overhead.
	if p.FlightDistanceM() != 0 {
		t.Errorf("expected no distance flown, got %v m", p.FlightDistanceM())
	}
	if math.Abs(p.FlightTimeHours()-LegOverheadHours) > 1e-12 {
		t.Errorf("expected only the return-leg overhead %v h, got %v", LegOverheadHours, p.FlightTimeHours())
	}
}

func TestFlightSimulationEmptyPath(t *testing.T) {
	p := newTestPDV(t, nil)
	nodes, _ := lineFleet(3, 3.0)

	var stats FlightStats
	pct, err := p.FlightSimulation(&stats, nodes, nil)
	if err != nil {
		t.Fatalf("FlightSimulation: %v", err)
	}
	// Zero planned targets is vacuously complete, with no travel at all.
	if pct != 100 {
		t.Fatalf("empty path should report 100%%, got %v", pct)
	}
	if p.FlightTimeHours() != 0 || p.FlightDistanceM() != 0 {
		t.Errorf("empty path must not fly: time=%v dist=%v", p.FlightTimeHours(), p.FlightDistanceM())
	}
	if p.RemainingEnergyWh() != p.Config().FullEnergyWh {
		t.Errorf("empty path must not drain energy, got %v", p.RemainingEnergyWh())
	}
}

func TestFlightSimulationChargesNodes(t *testing.T) {
	p := newTestPDV(t, func(c *Config) { c.RFToDCEfficiency = 0.5 })
	nodes, path := lineFleet(2, 3.0)

	deficit := nodes[0].EnergyDeficitWh() + nodes[1].EnergyDeficitWh()
	startEnergy := p.RemainingEnergyWh()

	var stats FlightStats
	pct, err := p.FlightSimulation(&stats, nodes, path)
	if err != nil {
		t.Fatalf("FlightSimulation: %v", err)
	}
	if pct != 100 {
		t.Fatalf("expected 100%% completion, got %v", pct)
	}

	// The accumulator records node-side delivered energy; the vehicle
	// pays delivered / efficiency on top of travel.
	if math.Abs(stats.ChargedEnergyWh-deficit) > 1e-9 {
		t.Errorf("charged energy = %v Wh, want %v Wh", stats.ChargedEnergyWh, deficit)
	}
	for _, sn := range nodes {
		if sn.Voltage != sn.MaxVoltage {
			t.Errorf("node %s not fully charged: %v V", sn.ID, sn.Voltage)
		}
		if sn.RequestsCharge {
			t.Errorf("node %s still requests charge after service", sn.ID)
		}
	}

	spent := startEnergy - p.RemainingEnergyWh()
	travelOnly := p.Config().PowerRatingW * stats.FlightTimeHours
	if math.Abs(spent-travelOnly) > 1e-9 {
		t.Errorf("energy and time accounting disagree: spent %v Wh vs P*t %v Wh", spent, travelOnly)
	}
}

func TestFlightSimulationUnknownTarget(t *testing.T) {
	p := newTestPDV(t, nil)
	nodes, _ := lineFleet(1, 3.0)

	_, err := p.FlightSimulation(&FlightStats{}, nodes, []model.Point{{X: 999, Y: 999}})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestSingleStageFlight(t *testing.T) {
	p := newTestPDV(t, nil)
	nodes, path := lineFleet(1, 3.0)

	var stats FlightStats
	pct, err := p.SingleStageFlight(&stats, nodes, path[0])
	if err != nil {
		t.Fatalf("SingleStageFlight: %v", err)
	}
	if pct != 100 {
		t.Fatalf("expected 100%% for a feasible single hop, got %v", pct)
	}
	if nodes[0].Voltage != nodes[0].MaxVoltage {
		t.Errorf("target node not charged")
	}
	if p.Position() != p.Config().BaseStation {
		t.Errorf("single-stage flight must end at base, got %v", p.Position())
	}

	// An infeasible hop goes straight home and reports 0.
	starved := newTestPDV(t, func(c *Config) { c.FullEnergyWh = 3 })
	far := model.NewSensorNode("far", model.Point{X: 5000}, 3.0)
	pct, err = starved.SingleStageFlight(&FlightStats{}, []*model.SensorNode{far}, far.Position)
	if err != nil {
		t.Fatalf("SingleStageFlight (starved): %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected 0%% for infeasible hop, got %v", pct)
	}
}

func TestFlightStatsAccumulateAcrossRuns(t *testing.T) {
	p := newTestPDV(t, nil)
	nodes, path := lineFleet(2, model.DefaultMaxVoltage)

	var stats FlightStats
	if _, err := p.FlightSimulation(&stats, nodes, path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstTime := stats.FlightTimeHours

	p.Reset()
	if _, err := p.FlightSimulation(&stats, nodes, path); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if stats.TargetsPlanned != 4 || stats.TargetsCharged != 4 {
		t.Errorf("expected 4/4 accumulated targets, got %d/%d", stats.TargetsCharged, stats.TargetsPlanned)
	}
	if math.Abs(stats.FlightTimeHours-2*firstTime) > 1e-9 {
		t.Errorf("expected doubled flight time %v, got %v", 2*firstTime, stats.FlightTimeHours)
	}
}
