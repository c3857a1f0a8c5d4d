package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cybot.radar/internal/perception/pose"
	"github.com/banshee-data/cybot.radar/internal/perception/segment"
)

// Params configures the resolver.
type Params struct {
	// MaxRangeCM bounds valid readings; it should match segment.Params.
	MaxRangeCM float64
	// Scale converts centimetres into map units; it should match pose.Params.
	Scale float64
	// SensorOffsetCM is how far forward of the robot center the sensor sits.
	SensorOffsetCM float64
	// ForwardBearingDeg is the servo bearing that points along the heading.
	ForwardBearingDeg float64
}

// DefaultParams returns the robot's mounting geometry.
func DefaultParams() Params {
	return Params{
		MaxRangeCM:        250,
		Scale:             2.0,
		SensorOffsetCM:    5,
		ForwardBearingDeg: 90,
	}
}

// Obstacle is one resolved object. It is never modified after Resolve.
type Obstacle struct {
	BearingCenterDeg float64 `json:"bearing_center_deg"`
	ClosestRangeCM   float64 `json:"closest_range_cm"`
	ChordWidthCM     float64 `json:"chord_width_cm"`
	WorldX           float64 `json:"world_x"`
	WorldY           float64 `json:"world_y"`
	// StartBearingDeg and EndBearingDeg bound the segment the obstacle came from.
	StartBearingDeg float64 `json:"start_bearing_deg"`
	EndBearingDeg   float64 `json:"end_bearing_deg"`
	Points          int     `json:"points"`
	// ArcFallback is set when the width came from the arc-length estimate.
	ArcFallback bool `json:"arc_fallback,omitempty"`
}

// ChordWidth returns the straight-line distance between readings a and b
// separated by thetaRad. When the law of cosines radicand is negative it
// falls back to ArcWidth and reports fallback=true.
func ChordWidth(a, b, thetaRad float64, readings []float64) (width float64, fallback bool) {
	radicand := a*a + b*b - 2*a*b*math.Cos(thetaRad)
	if radicand >= 0 {
		return math.Sqrt(radicand), false
	}
	return ArcWidth(readings, thetaRad), true
}

// ArcWidth approximates width as mean(readings) * thetaRad.
func ArcWidth(readings []float64, thetaRad float64) float64 {
	if len(readings) == 0 {
		return 0
	}
	return stat.Mean(readings, nil) * thetaRad
}

// Resolve converts seg into an obstacle seen from p. It reports false when the
// edge readings are out of range or the result has no positive range or width.
func Resolve(seg segment.Segment, p pose.Pose, params Params) (Obstacle, bool) {
	if seg.Len() == 0 {
		return Obstacle{}, false
	}
	readings := seg.InRangeReadings(params.MaxRangeCM)
	if len(readings) == 0 {
		return Obstacle{}, false
	}

	first, last := seg.First(), seg.Last()
	if !first.InRange(params.MaxRangeCM) || !last.InRange(params.MaxRangeCM) {
		return Obstacle{}, false
	}

	widthDeg := seg.AngularWidthDeg()
	width, fallback := ChordWidth(first.RangeCM, last.RangeCM, widthDeg*math.Pi/180.0, readings)
	closest := floats.Min(readings)
	if closest <= 0 || width <= 0 || math.IsNaN(width) {
		return Obstacle{}, false
	}

	center := seg.CenterBearingDeg()
	sensor := pose.Pose{HeadingDeg: p.HeadingDeg}
	origin := p.Project(0, params.SensorOffsetCM*params.Scale)
	sensor.X, sensor.Y = origin.X, origin.Y
	at := sensor.Project(center-params.ForwardBearingDeg, (closest+width/2)*params.Scale)

	return Obstacle{
		BearingCenterDeg: center,
		ClosestRangeCM:   closest,
		ChordWidthCM:     width,
		WorldX:           at.X,
		WorldY:           at.Y,
		StartBearingDeg:  first.BearingDeg,
		EndBearingDeg:    last.BearingDeg,
		Points:           seg.Len(),
		ArcFallback:      fallback,
	}, true
}

// ResolveAll resolves every segment against the same pose snapshot, keeping
// only the ones that produce an obstacle.
func ResolveAll(segs []segment.Segment, p pose.Pose, params Params) []Obstacle {
	out := make([]Obstacle, 0, len(segs))
	for _, seg := range segs {
		if ob, ok := Resolve(seg, p, params); ok {
			out = append(out, ob)
		}
	}
	return out
}
