package serialmux

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultReplayInterval paces replayed lines roughly like the servo sweep.
const DefaultReplayInterval = 20 * time.Millisecond

// ReplayPort plays a captured robot session back as if it were a live link.
// Commands written to it are recorded and otherwise ignored.
type ReplayPort struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer

	done      chan struct{}
	closeOnce sync.Once
}

// LoadReplayFile reads a capture, skipping blank lines and '#' comments.
func LoadReplayFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	var lines []string
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("replay file %s has no lines", path)
	}
	return lines, nil
}

// NewReplayPort starts emitting lines, one per interval. With loop set the
// capture repeats until Close; otherwise the reader sees io.EOF at the end.
func NewReplayPort(lines []string, interval time.Duration, loop bool) *ReplayPort {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	pr, pw := io.Pipe()
	p := &ReplayPort{pr: pr, pw: pw, done: make(chan struct{})}
	go p.play(append([]string(nil), lines...), interval, loop)
	return p
}

func (p *ReplayPort) play(lines []string, interval time.Duration, loop bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, line := range lines {
			select {
			case <-p.done:
				return
			case <-ticker.C:
			}
			if _, err := io.WriteString(p.pw, line+"\n"); err != nil {
				return
			}
		}
		if !loop || len(lines) == 0 {
			p.pw.Close()
			return
		}
	}
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *ReplayPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

// Written returns the commands sent to the replay so far.
func (p *ReplayPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *ReplayPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.pw.Close()
		p.pr.Close()
	})
	return nil
}

// NewReplaySerialMux creates a SerialMux that replays the capture at path.
func NewReplaySerialMux(path string, interval time.Duration, loop bool) (*SerialMux[*ReplayPort], error) {
	lines, err := LoadReplayFile(path)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(NewReplayPort(lines, interval, loop)), nil
}
