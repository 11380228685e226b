// Package planner orders the outstanding charge requests into a flight
// path. The flight simulator visits waypoints strictly in the order given,
// so route quality lives entirely here.
package planner

import (
	"math"

	"github.com/gridsentry/pdv-simulator/model"
)

// Plan returns a greedy nearest-neighbour route over every node that still
// requests charge, starting from the base station. Nodes that do not
// request charge are skipped. The returned waypoints are node positions
// verbatim, which is what the flight simulator resolves targets against.
func Plan(base model.Point, nodes []*model.SensorNode) []model.Point {
	pending := make([]*model.SensorNode, 0, len(nodes))
	for _, sn := range nodes {
		if sn != nil && sn.RequestsCharge {
			pending = append(pending, sn)
		}
	}

	path := make([]model.Point, 0, len(pending))
	cur := base
	for len(pending) > 0 {
		best := 0
		bestDist := math.Inf(1)
		for i, sn := range pending {
			if d := cur.DistanceTo(sn.Position); d < bestDist {
				best, bestDist = i, d
			}
		}
		cur = pending[best].Position
		path = append(path, cur)
		pending = append(pending[:best], pending[best+1:]...)
	}
	return path
}
