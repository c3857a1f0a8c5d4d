package pose

import "math"

// Params configures a Tracker.
type Params struct {
	// Scale converts reported centimetres into map units.
	Scale float64
	// Initial is the pose the tracker starts from and returns to on Reset.
	Initial Pose
}

// DefaultParams returns the production defaults: 2 map units per cm, starting
// at the origin facing up.
func DefaultParams() Params {
	return Params{
		Scale:   2.0,
		Initial: Pose{HeadingDeg: DefaultHeadingDeg},
	}
}

// Tracker integrates relative move reports into a Pose. It is owned by a
// single goroutine and is not safe for concurrent use; share Snapshot values
// instead.
type Tracker struct {
	params Params
	pose   Pose
}

// NewTracker creates a tracker at params.Initial.
func NewTracker(params Params) *Tracker {
	if params.Scale <= 0 || math.IsNaN(params.Scale) || math.IsInf(params.Scale, 0) {
		params.Scale = DefaultParams().Scale
	}
	params.Initial.HeadingDeg = WrapDegrees(finiteOrZero(params.Initial.HeadingDeg))
	return &Tracker{params: params, pose: params.Initial}
}

// Snapshot returns a copy of the current pose.
func (t *Tracker) Snapshot() Pose {
	return t.pose
}

// Reset moves the tracker to p without emitting a trail.
func (t *Tracker) Reset(p Pose) {
	t.pose = Pose{
		X:          finiteOrZero(p.X),
		Y:          finiteOrZero(p.Y),
		HeadingDeg: WrapDegrees(finiteOrZero(p.HeadingDeg)),
	}
}

// ApplyMove turns by headingDeltaDeg and then translates distanceCM along the
// new heading. Turn and translation are applied sequentially, not as an arc.
// The pose always updates; the returned bool reports whether the move was
// large enough to emit a trail segment. Non-finite inputs count as zero.
func (t *Tracker) ApplyMove(distanceCM, headingDeltaDeg float64) (Pose, TrailSegment, bool) {
	distanceCM = finiteOrZero(distanceCM)
	headingDeltaDeg = finiteOrZero(headingDeltaDeg)

	from := t.pose
	heading := WrapDegrees(from.HeadingDeg + headingDeltaDeg)
	to := Pose{X: from.X, Y: from.Y, HeadingDeg: heading}
	pos := to.Project(0, distanceCM*t.params.Scale)
	to.X, to.Y = pos.X, pos.Y
	t.pose = to

	if math.Abs(distanceCM) > TrailThreshold || math.Abs(headingDeltaDeg) > TrailThreshold {
		return to, TrailSegment{From: from, To: to}, true
	}
	return to, TrailSegment{}, false
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
