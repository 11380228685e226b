package model

import "math"

// Point is a planar position in metres, relative to the base station grid.
// Flight altitude is carried by the vehicle, not the point; all deployed
// hardware sits on the ground plane.
type Point struct {
	X float64
	Y float64
}

// DistanceTo returns the straight-line distance between two points in metres.
func (p Point) DistanceTo(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// BearingTo returns the heading from p to other in radians,
// measured counter-clockwise from the +X axis.
func (p Point) BearingTo(other Point) float64 {
	return math.Atan2(other.Y-p.Y, other.X-p.X)
}
