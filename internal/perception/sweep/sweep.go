package sweep

import (
	"math"
	"time"
)

// Bearing limits of the sensor servo.
const (
	MinBearingDeg = 0.0
	MaxBearingDeg = 180.0
)

// Sample is one range/reflectance reading at a servo bearing.
type Sample struct {
	BearingDeg  float64 `json:"bearing_deg"`
	RangeCM     float64 `json:"range_cm"`
	Reflectance uint32  `json:"reflectance"`
}

// InRange reports whether the range reading is valid and no farther than
// maxRangeCM.
func (s Sample) InRange(maxRangeCM float64) bool {
	return s.RangeCM > 0 && s.RangeCM <= maxRangeCM
}

// Valid reports whether the bearing is finite and within the servo arc.
func (s Sample) Valid() bool {
	if math.IsNaN(s.BearingDeg) || math.IsNaN(s.RangeCM) || math.IsInf(s.RangeCM, 0) {
		return false
	}
	return s.BearingDeg >= MinBearingDeg && s.BearingDeg <= MaxBearingDeg
}

// Sweep is an immutable, bearing-ordered set of samples. The zero value is an
// empty sweep.
type Sweep struct {
	id          string
	completedAt time.Time
	samples     []Sample
}

// New builds a frozen sweep from samples already in bearing order. The slice
// is copied.
func New(id string, completedAt time.Time, samples []Sample) Sweep {
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return Sweep{id: id, completedAt: completedAt, samples: cp}
}

// ID is the identifier assigned when the sweep was completed.
func (s Sweep) ID() string { return s.id }

// CompletedAt is when the completion marker was handled.
func (s Sweep) CompletedAt() time.Time { return s.completedAt }

// Len is the number of samples.
func (s Sweep) Len() int { return len(s.samples) }

// Empty reports whether the sweep has no samples.
func (s Sweep) Empty() bool { return len(s.samples) == 0 }

// At returns the i'th sample in bearing order.
func (s Sweep) At(i int) Sample { return s.samples[i] }

// Samples returns a copy of the samples.
func (s Sweep) Samples() []Sample {
	cp := make([]Sample, len(s.samples))
	copy(cp, s.samples)
	return cp
}
