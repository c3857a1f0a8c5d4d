package serialmux

import "io"

// SerialPorter defines the minimal interface needed for a robot link.
// go.bug.st/serial ports, net.Conn and ReplayPort all satisfy it, and tests
// use TestableSerialPort.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
