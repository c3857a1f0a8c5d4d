package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
)

// LineSource is the subscription half of serialmux.SerialMuxInterface.
type LineSource interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// BridgeStats counts lines seen by a Bridge.
type BridgeStats struct {
	Lines     int64 `json:"lines"`
	Events    int64 `json:"events"`
	Malformed int64 `json:"malformed"`
	Unknown   int64 `json:"unknown"`
}

// Bridge decodes lines from a LineSource and pushes the resulting events onto
// the perception queue. It is the single producer for that queue.
type Bridge struct {
	src   LineSource
	queue *events.Queue
	ready chan struct{}
	once  sync.Once

	lines     atomic.Int64
	events    atomic.Int64
	malformed atomic.Int64
	unknown   atomic.Int64
}

// NewBridge connects src to queue.
func NewBridge(src LineSource, queue *events.Queue) *Bridge {
	return &Bridge{src: src, queue: queue, ready: make(chan struct{})}
}

// Ready is closed once Run has subscribed to the source. Start the source's
// monitor after it to avoid losing the first lines.
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Run forwards events until ctx is cancelled, the source closes its channel,
// or the queue is closed. Only cancellation is reported as an error.
func (b *Bridge) Run(ctx context.Context) error {
	id, lines := b.src.Subscribe()
	defer b.src.Unsubscribe(id)
	diagf("bridge subscribed as %s", id)
	b.once.Do(func() { close(b.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				diagf("line source closed")
				return nil
			}
			if err := b.handleLine(ctx, line); err != nil {
				if errors.Is(err, events.ErrQueueClosed) {
					diagf("event queue closed; bridge exiting")
					return nil
				}
				return err
			}
		}
	}
}

func (b *Bridge) handleLine(ctx context.Context, line string) error {
	b.lines.Add(1)
	tracef("line %q", line)

	ev, err := Decode(line)
	switch {
	case errors.Is(err, ErrEmptyLine):
		return nil
	case errors.Is(err, ErrUnknownPrefix):
		b.unknown.Add(1)
		diagf("skipping line: %v", err)
	case errors.Is(err, ErrMalformedField):
		b.malformed.Add(1)
		diagf("malformed line %q: %v", truncate(line, 64), err)
	case err != nil:
		opsf("decode %q: %v", truncate(line, 64), err)
	}
	if ev == nil {
		return nil
	}

	if err := b.queue.Push(ctx, ev); err != nil {
		return err
	}
	b.events.Add(1)
	return nil
}

// Stats returns the line counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Lines:     b.lines.Load(),
		Events:    b.events.Load(),
		Malformed: b.malformed.Load(),
		Unknown:   b.unknown.Load(),
	}
}
