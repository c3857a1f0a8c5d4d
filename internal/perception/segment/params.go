package segment

// Params holds the edge detector tunables.
type Params struct {
	// MinStrength is the reflectance at or above which a sample is "strong".
	MinStrength uint32
	// RiseThreshold is the minimum step up (current - previous) that opens a
	// run even when the previous sample was already strong.
	RiseThreshold uint32
	// DropThreshold is the minimum step down (previous - current) between two
	// strong samples that closes a run.
	DropThreshold uint32
	// MaxRangeCM bounds the ranges considered valid.
	MaxRangeCM float64
	// MinSegmentPoints is the minimum run length kept.
	MinSegmentPoints int
	// MinAngularWidthDeg is the minimum |last - first| bearing kept.
	MinAngularWidthDeg float64
}

// DefaultParams returns the tuning used on the robot.
func DefaultParams() Params {
	return Params{
		MinStrength:        750,
		RiseThreshold:      300,
		DropThreshold:      250,
		MaxRangeCM:         250,
		MinSegmentPoints:   3,
		MinAngularWidthDeg: 6,
	}
}

// normalized clamps values that would make the gates meaningless.
func (p Params) normalized() Params {
	if p.MinSegmentPoints < 1 {
		p.MinSegmentPoints = 1
	}
	if p.MinAngularWidthDeg < 0 {
		p.MinAngularWidthDeg = 0
	}
	return p
}

// leadInReflectance stands in for the sample before the first one. It is
// always weak, so a strong first sample can open a run.
func (p Params) leadInReflectance() uint32 {
	v := p.MinStrength / 2
	if v > 50 {
		v = 50
	}
	return v
}
