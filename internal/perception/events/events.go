package events

// Kind identifies the concrete type of an Event.
type Kind int

const (
	KindScanSample Kind = iota
	KindScanComplete
	KindMove
	KindBump
	KindStatus
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindScanSample:
		return "scan_sample"
	case KindScanComplete:
		return "scan_complete"
	case KindMove:
		return "move"
	case KindBump:
		return "bump"
	case KindStatus:
		return "status"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Event is a single report from the robot.
type Event interface {
	Kind() Kind
}

// ScanSample is one bearing of a sweep. RangeCM of 0 marks an invalid
// reading. Samples need not arrive in bearing order.
type ScanSample struct {
	BearingDeg  float64
	RangeCM     float64
	Reflectance uint32
}

// ScanComplete closes the sweep in progress.
type ScanComplete struct{}

// Move is a relative motion report: a turn followed by a straight translation.
type Move struct {
	DistanceCM      float64
	HeadingDeltaDeg float64
}

// BumpSide names which bumper fired.
type BumpSide int

const (
	BumpNone BumpSide = iota
	BumpLeft
	BumpRight
)

func (s BumpSide) String() string {
	switch s {
	case BumpLeft:
		return "left"
	case BumpRight:
		return "right"
	default:
		return "none"
	}
}

// MarshalText renders the side as its lower-case name.
func (s BumpSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Bump reports a bumper contact.
type Bump struct {
	Side BumpSide
}

// CliffSensor indexes the four downward-facing cliff sensors.
type CliffSensor int

const (
	CliffLeft CliffSensor = iota
	CliffFrontLeft
	CliffFrontRight
	CliffRight
	NumCliffSensors
)

// Surface is the floor type under a cliff sensor, judged from its signal.
type Surface int

const (
	SurfaceUnknown Surface = iota
	SurfaceFloor
	SurfaceWhite
	SurfaceBlack
)

func (s Surface) String() string {
	switch s {
	case SurfaceFloor:
		return "floor"
	case SurfaceWhite:
		return "white"
	case SurfaceBlack:
		return "black"
	default:
		return "unknown"
	}
}

// MarshalText renders the surface as its lower-case name.
func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the robot's periodic sensor summary. It is relayed to sinks
// unchanged; the core does not act on it. Has* fields report whether the
// optional value was present and well formed.
type Status struct {
	BumpLeft    bool                     `json:"bump_left"`
	BumpRight   bool                     `json:"bump_right"`
	Cliff       [NumCliffSensors]bool    `json:"cliff"`
	CliffSignal [NumCliffSensors]int     `json:"cliff_signal"`
	HasSignal   [NumCliffSensors]bool    `json:"has_signal"`
	Surface     [NumCliffSensors]Surface `json:"surface"`
	PingCM      float64                  `json:"ping_cm"`
	HasPing     bool                     `json:"has_ping"`
	HeadingDeg  float64                  `json:"heading_deg"`
	HasHeading  bool                     `json:"has_heading"`
}

// Info is a free-text log line from the robot (INFO, DEBUG, ERROR, ACK).
type Info struct {
	Level string
	Text  string
}

func (ScanSample) Kind() Kind   { return KindScanSample }
func (ScanComplete) Kind() Kind { return KindScanComplete }
func (Move) Kind() Kind         { return KindMove }
func (Bump) Kind() Kind         { return KindBump }
func (Status) Kind() Kind       { return KindStatus }
func (Info) Kind() Kind         { return KindInfo }
