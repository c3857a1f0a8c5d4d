package serialmux

import (
	"fmt"
	"net"
	"time"

	"go.bug.st/serial"
)

// DefaultTCPAddr is the robot's Wi-Fi bridge.
const DefaultTCPAddr = "192.168.1.1:288"

// DefaultDialTimeout bounds the TCP connect.
const DefaultDialTimeout = 5 * time.Second

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port), nil
}

// NewTCPSerialMux dials the robot's TCP socket and multiplexes it like a
// serial port.
func NewTCPSerialMux(addr string, timeout time.Duration) (*SerialMux[net.Conn], error) {
	if addr == "" {
		addr = DefaultTCPAddr
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial robot at %s: %w", addr, err)
	}
	return NewSerialMux[net.Conn](conn), nil
}
