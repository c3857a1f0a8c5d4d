package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

var errPortClosed = errors.New("robot link closed")

// TestableSerialPort is an in-memory SerialPorter for tests of the mux, the
// bridge and the HTTP layers. Reads block until AddLines or Close; writes are
// captured and can fail on demand.
type TestableSerialPort struct {
	mu       sync.Mutex
	cond     *sync.Cond
	incoming bytes.Buffer
	written  bytes.Buffer
	closed   bool

	// WriteError, if set, is returned by every Write.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	// CloseError is returned by Close.
	CloseError error
}

// NewTestableSerialPort creates an open port with nothing to read.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddLines queues newline-terminated lines for the reader.
func (p *TestableSerialPort) AddLines(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lines {
		p.incoming.WriteString(l)
		p.incoming.WriteByte('\n')
	}
	p.cond.Broadcast()
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.incoming.Len() == 0 {
		p.cond.Wait()
	}
	if p.incoming.Len() > 0 {
		return p.incoming.Read(b)
	}
	return 0, errPortClosed
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if p.WriteError != nil {
		return 0, p.WriteError
	}
	p.written.Write(b)
	if p.ShortWrite && len(b) > 0 {
		return len(b) - 1, nil
	}
	return len(b), nil
}

// Close wakes blocked readers; buffered lines are still delivered first.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return p.CloseError
}

// Written returns everything written so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// IsClosed reports whether Close was called.
func (p *TestableSerialPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
