package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
)

var (
	ErrEmptyLine      = errors.New("telemetry: empty line")
	ErrUnknownPrefix  = errors.New("telemetry: unknown line prefix")
	ErrMalformedField = errors.New("telemetry: malformed field")
)

// LineType is a coarse classification of a raw line.
type LineType string

const (
	LineScan    LineType = "scan"
	LineScanEnd LineType = "scan_end"
	LineMove    LineType = "move"
	LineBump    LineType = "bump"
	LineStatus  LineType = "status"
	LineLog     LineType = "log"
	LineEmpty   LineType = "empty"
	LineUnknown LineType = "unknown"
)

const (
	prefixScan   = "SCAN:"
	prefixMove   = "MOVE:"
	prefixBump   = "BUMP_EVENT:"
	prefixStatus = "STATUS:"
)

var logPrefixes = []string{"INFO:", "DEBUG:", "ERROR:", "ACK:"}

// Cliff signal thresholds. Readings at or above WhiteThreshold are boundary
// tape; at or below BlackThreshold the sensor is over a hole or dark mat.
const (
	WhiteThreshold = 2600
	BlackThreshold = 500
)

// ClassifyLine inspects a line and returns its type without decoding fields.
func ClassifyLine(line string) LineType {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineEmpty
	case strings.HasPrefix(line, prefixScan):
		if strings.Contains(strings.ToUpper(line), "END SCAN") {
			return LineScanEnd
		}
		return LineScan
	case strings.HasPrefix(line, prefixMove):
		return LineMove
	case strings.HasPrefix(line, prefixBump):
		return LineBump
	case strings.HasPrefix(line, prefixStatus):
		return LineStatus
	}
	for _, p := range logPrefixes {
		if strings.HasPrefix(line, p) {
			return LineLog
		}
	}
	return LineUnknown
}

// Decode converts one line into an event.
//
// A SCAN sample needs ANGLE, a distance and IR_RAW; if any is missing or
// unparseable the sample is dropped (nil event, ErrMalformedField). MOVE and
// STATUS lines are decoded leniently: bad fields keep their zero value and the
// event is returned together with an error wrapping ErrMalformedField.
func Decode(line string) (events.Event, error) {
	line = strings.TrimSpace(line)
	switch ClassifyLine(line) {
	case LineEmpty:
		return nil, ErrEmptyLine
	case LineScanEnd:
		return events.ScanComplete{}, nil
	case LineScan:
		return decodeScan(strings.TrimPrefix(line, prefixScan))
	case LineMove:
		return decodeMove(strings.TrimPrefix(line, prefixMove))
	case LineBump:
		return decodeBump(strings.TrimPrefix(line, prefixBump)), nil
	case LineStatus:
		return decodeStatus(strings.TrimPrefix(line, prefixStatus))
	case LineLog:
		level, text, _ := strings.Cut(line, ":")
		return events.Info{Level: level, Text: strings.TrimSpace(text)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, truncate(line, 32))
	}
}

// fields splits "K=V,K=V" into ordered pairs. Parts without exactly one '='
// are skipped, as the robot GUI did.
func fields(body string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(body, ",") {
		kv := strings.Split(part, "=")
		if len(kv) != 2 {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])})
	}
	return out
}

func parseFloat(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformedField, key, v)
	}
	return f, nil
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformedField, key, v)
	}
	return n, nil
}

// parseReflectance accepts raw IR counts in [0, math.MaxUint32].
func parseReflectance(v string) (uint32, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: IR_RAW=%q", ErrMalformedField, v)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: IR_RAW=%d out of range", ErrMalformedField, n)
	}
	return uint32(n), nil
}

func decodeScan(body string) (events.Event, error) {
	var s events.ScanSample
	var hasAngle, hasDist, hasIR bool
	for _, kv := range fields(body) {
		key, val := kv[0], kv[1]
		switch key {
		case "ANGLE":
			f, err := parseFloat(key, val)
			if err != nil {
				return nil, err
			}
			s.BearingDeg, hasAngle = f, true
		case "DIST_CM":
			f, err := parseFloat(key, val)
			if err != nil {
				return nil, err
			}
			s.RangeCM, hasDist = f, true
		case "DIST_MM":
			f, err := parseFloat(key, val)
			if err != nil {
				return nil, err
			}
			s.RangeCM, hasDist = f/10, true
		case "IR_RAW":
			r, err := parseReflectance(val)
			if err != nil {
				return nil, err
			}
			s.Reflectance, hasIR = r, true
		}
	}
	if !hasAngle || !hasDist || !hasIR {
		return nil, fmt.Errorf("%w: scan sample needs ANGLE, DIST_CM and IR_RAW", ErrMalformedField)
	}
	if s.RangeCM < 0 {
		s.RangeCM = 0
	}
	return s, nil
}

func decodeMove(body string) (events.Event, error) {
	var (
		m    events.Move
		errs []error
	)
	for _, kv := range fields(body) {
		key, val := kv[0], kv[1]
		switch key {
		case "DIST_CM":
			f, err := parseFloat(key, val)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.DistanceCM = f
		case "ANGLE_DEG":
			f, err := parseFloat(key, val)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.HeadingDeltaDeg = f
		}
	}
	return m, errors.Join(errs...)
}

func decodeBump(body string) events.Bump {
	upper := strings.ToUpper(body)
	switch {
	case strings.Contains(upper, "LEFT"):
		return events.Bump{Side: events.BumpLeft}
	case strings.Contains(upper, "RIGHT"):
		return events.Bump{Side: events.BumpRight}
	default:
		return events.Bump{Side: events.BumpNone}
	}
}

var cliffKeys = map[string]events.CliffSensor{
	"L":  events.CliffLeft,
	"FL": events.CliffFrontLeft,
	"FR": events.CliffFrontRight,
	"R":  events.CliffRight,
}

func decodeStatus(body string) (events.Event, error) {
	var (
		st   events.Status
		errs []error
	)
	for _, kv := range fields(body) {
		key, val := kv[0], kv[1]
		switch {
		case key == "BUMP_L":
			st.BumpLeft = val == "1"
		case key == "BUMP_R":
			st.BumpRight = val == "1"
		case key == "PING":
			f, err := parseFloat(key, val)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			st.PingCM, st.HasPing = f, true
		case key == "Heading":
			f, err := parseFloat(key, val)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			st.HeadingDeg, st.HasHeading = f, true
		case strings.HasPrefix(key, "CLIFF_"):
			name := strings.TrimPrefix(key, "CLIFF_")
			name, isSignal := strings.CutSuffix(name, "_SIG")
			idx, ok := cliffKeys[name]
			if !ok {
				continue
			}
			n, err := parseInt(key, val)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if isSignal {
				st.CliffSignal[idx] = n
				st.HasSignal[idx] = true
				st.Surface[idx] = ClassifySurface(n)
			} else {
				st.Cliff[idx] = n != 0
			}
		}
	}
	return st, errors.Join(errs...)
}

// ClassifySurface maps a cliff sensor signal onto a floor type.
func ClassifySurface(signal int) events.Surface {
	switch {
	case signal >= WhiteThreshold:
		return events.SurfaceWhite
	case signal <= BlackThreshold:
		return events.SurfaceBlack
	default:
		return events.SurfaceFloor
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
