package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// TrailThreshold is the minimum |distance| (cm) or |heading change| (deg) for a
// move to produce a TrailSegment. It never gates the pose update.
const TrailThreshold = 0.1

// DefaultHeadingDeg faces "up" the map in the y-down frame.
const DefaultHeadingDeg = 90.0

// Pose is a ground-plane position and heading.
type Pose struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading_deg"`
}

// Position returns the pose position as a vector.
func (p Pose) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Project returns the point dist map units from p along the heading offset by
// relativeDeg.
func (p Pose) Project(relativeDeg, dist float64) r2.Vec {
	return r2.Add(p.Position(), r2.Scale(dist, Direction(p.HeadingDeg+relativeDeg)))
}

// TrailSegment is the straight-line delta produced by one significant move.
type TrailSegment struct {
	From Pose `json:"from"`
	To   Pose `json:"to"`
}

// Direction returns the unit vector for a heading in the y-down frame.
func Direction(headingDeg float64) r2.Vec {
	rad := headingDeg * math.Pi / 180.0
	return r2.Vec{X: math.Cos(rad), Y: -math.Sin(rad)}
}

// WrapDegrees maps any finite angle into [0, 360).
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 || deg == 0 {
		// catches -0 and values rounding up to 360 after the shift
		return 0
	}
	return deg
}
