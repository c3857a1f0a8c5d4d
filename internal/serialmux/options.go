package serialmux

import (
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the CyBot UART configuration.
const DefaultBaudRate = 115200

// The CyBot UART and the USB bridges it ships with only negotiate these.
var cybotBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400}

var parityAliases = map[string]string{
	"N": "N", "NONE": "N",
	"E": "E", "EVEN": "E",
	"O": "O", "ODD": "O",
}

var serialParity = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// PortOptions is the UART framing used to open the robot's serial link.
// Zero values mean 115200 8N1.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize fills in 8N1 defaults and canonicalises Parity to N, E or O.
func (o PortOptions) Normalize() (PortOptions, error) {
	n := PortOptions{
		BaudRate: orDefault(o.BaudRate, DefaultBaudRate),
		DataBits: orDefault(o.DataBits, 8),
		StopBits: orDefault(o.StopBits, 1),
	}
	switch {
	case !slices.Contains(cybotBaudRates, n.BaudRate):
		return o, fmt.Errorf("serialmux: baud rate %d not supported by the robot UART", n.BaudRate)
	case n.DataBits < 5 || n.DataBits > 8:
		return o, fmt.Errorf("serialmux: data bits %d outside 5..8", n.DataBits)
	case n.StopBits != 1 && n.StopBits != 2:
		return o, fmt.Errorf("serialmux: stop bits %d, want 1 or 2", n.StopBits)
	}

	p := strings.ToUpper(strings.TrimSpace(o.Parity))
	if p == "" {
		p = "N"
	}
	canon, ok := parityAliases[p]
	if !ok {
		return o, fmt.Errorf("serialmux: parity %q, want N, E or O", o.Parity)
	}
	n.Parity = canon
	return n, nil
}

// Equal reports whether both options open the link with the same framing.
// Invalid options never compare equal.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalize()
	b, errB := other.Normalize()
	return errA == nil && errB == nil && a == b
}

// SerialMode converts the options for go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	stop := serial.OneStopBit
	if n.StopBits == 2 {
		stop = serial.TwoStopBits
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		StopBits: stop,
		Parity:   serialParity[n.Parity],
	}, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
