package sweep

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Buffer collects samples for the sweep in progress. Push and Complete may be
// called from different goroutines.
type Buffer struct {
	mu      sync.Mutex
	samples []Sample
	dropped int
	now     func() time.Time
}

// NewBuffer creates an empty buffer sized for a full 0-180 degree sweep.
func NewBuffer() *Buffer {
	return &Buffer{
		samples: make([]Sample, 0, 181),
		now:     time.Now,
	}
}

// Push appends s to the sweep in progress. Samples with a bearing outside the
// servo arc or a non-finite reading are dropped and Push returns false.
func (b *Buffer) Push(s Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !s.Valid() {
		b.dropped++
		return false
	}
	b.samples = append(b.samples, s)
	return true
}

// Len is the number of samples in the sweep in progress.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Dropped is the number of samples rejected since the buffer was created.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Complete freezes the sweep in progress, sorted by bearing (arrival order is
// kept for equal bearings), and starts a new empty one. An empty buffer
// yields the zero Sweep.
func (b *Buffer) Complete() Sweep {
	b.mu.Lock()
	samples := b.samples
	b.samples = make([]Sample, 0, cap(samples))
	now := b.now()
	b.mu.Unlock()

	if len(samples) == 0 {
		return Sweep{}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].BearingDeg < samples[j].BearingDeg
	})
	return Sweep{id: uuid.NewString(), completedAt: now, samples: samples}
}

// Reset discards the sweep in progress.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}
