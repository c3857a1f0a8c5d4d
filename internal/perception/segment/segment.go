package segment

import (
	"math"

	"github.com/banshee-data/cybot.radar/internal/perception/sweep"
)

// Segment is a contiguous, bearing-ordered run of samples attributed to one
// object.
type Segment struct {
	Samples []sweep.Sample `json:"samples"`
}

// Len is the number of samples in the run.
func (s Segment) Len() int { return len(s.Samples) }

// First returns the lowest-bearing sample.
func (s Segment) First() sweep.Sample { return s.Samples[0] }

// Last returns the highest-bearing sample.
func (s Segment) Last() sweep.Sample { return s.Samples[len(s.Samples)-1] }

// AngularWidthDeg is |last - first| bearing.
func (s Segment) AngularWidthDeg() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return math.Abs(s.Last().BearingDeg - s.First().BearingDeg)
}

// CenterBearingDeg is the midpoint of the first and last bearings.
func (s Segment) CenterBearingDeg() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return (s.First().BearingDeg + s.Last().BearingDeg) / 2
}

// InRangeReadings returns the ranges of samples in (0, maxRangeCM], in order.
func (s Segment) InRangeReadings(maxRangeCM float64) []float64 {
	var out []float64
	for _, smp := range s.Samples {
		if smp.InRange(maxRangeCM) {
			out = append(out, smp.RangeCM)
		}
	}
	return out
}

type state int

const (
	idle state = iota
	inSegment
)

// Extract runs the edge detector over sw and returns the accepted segments in
// bearing order. An empty sweep yields nil.
func Extract(sw sweep.Sweep, params Params) []Segment {
	p := params.normalized()
	if sw.Empty() {
		return nil
	}

	var (
		out  []Segment
		run  []sweep.Sample
		st   = idle
		prev = p.leadInReflectance()
	)

	closeRun := func() {
		if len(run) >= p.MinSegmentPoints {
			if seg := (Segment{Samples: run}); accept(seg, p) {
				out = append(out, seg)
			}
		}
		run = nil
		st = idle
	}

	for i := 0; i < sw.Len(); i++ {
		s := sw.At(i)
		relevant := s.InRange(p.MaxRangeCM)
		strong := s.Reflectance >= p.MinStrength
		prevStrong := prev >= p.MinStrength
		step := int64(s.Reflectance) - int64(prev)

		if st == inSegment {
			unsuitable := !(relevant && strong)
			sharpDrop := strong && prevStrong && -step >= int64(p.DropThreshold)
			if unsuitable || sharpDrop {
				closeRun()
			} else {
				run = append(run, s)
			}
		}

		// A sample that just closed a run is evaluated again as a start, so
		// adjacent objects are neither merged nor dropped.
		if st == idle && relevant && strong {
			sharpRise := step >= int64(p.RiseThreshold)
			if sharpRise || !prevStrong {
				st = inSegment
				run = []sweep.Sample{s}
			}
		}

		prev = s.Reflectance
	}

	if st == inSegment {
		closeRun()
	}
	return out
}

// accept applies the post-filter: at least one in-range reading and enough
// angular width.
func accept(seg Segment, p Params) bool {
	hasInRange := false
	for _, s := range seg.Samples {
		if s.InRange(p.MaxRangeCM) {
			hasInRange = true
			break
		}
	}
	if !hasInRange {
		return false
	}
	return seg.AngularWidthDeg() >= p.MinAngularWidthDeg
}
