package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
	"github.com/banshee-data/cybot.radar/internal/perception/segment"
	"github.com/banshee-data/cybot.radar/internal/perception/sweep"
)

// Config groups the parameters of every stage.
type Config struct {
	Segment  segment.Params
	Geometry geometry.Params
	Pose     pose.Params
	// BumpOffset is the distance from the pose to a bump marker, in map units.
	BumpOffset float64
	// BumpAngleDeg is the angle off the heading at which side bumps are placed.
	BumpAngleDeg float64
}

// DefaultConfig returns the defaults of each stage.
func DefaultConfig() Config {
	return Config{
		Segment:      segment.DefaultParams(),
		Geometry:     geometry.DefaultParams(),
		Pose:         pose.DefaultParams(),
		BumpOffset:   15,
		BumpAngleDeg: 45,
	}
}

// Stats counts what the core has processed since it was created.
type Stats struct {
	Samples        int64 `json:"samples"`
	DroppedSamples int64 `json:"dropped_samples"`
	Sweeps         int64 `json:"sweeps"`
	EmptySweeps    int64 `json:"empty_sweeps"`
	Segments       int64 `json:"segments"`
	Obstacles      int64 `json:"obstacles"`
	Rejected       int64 `json:"rejected"`
	Moves          int64 `json:"moves"`
	Bumps          int64 `json:"bumps"`
	Panics         int64 `json:"panics"`
}

// Core is the single owner of perception state. Handle must only be called
// from one goroutine (normally via Run); Pose, Obstacles and Stats are safe
// from any goroutine.
type Core struct {
	cfg     Config
	queue   *events.Queue
	sink    Sink
	buffer  *sweep.Buffer
	tracker *pose.Tracker

	mu        sync.RWMutex
	pose      pose.Pose
	obstacles ObstacleList
	stats     Stats
}

// NewCore wires a core to its input queue and output sink. A nil sink
// discards outputs; a nil queue is allowed when events are fed via Handle.
func NewCore(cfg Config, queue *events.Queue, sink Sink) *Core {
	if sink == nil {
		sink = NopSink{}
	}
	if cfg.BumpOffset <= 0 {
		cfg.BumpOffset = DefaultConfig().BumpOffset
	}
	tracker := pose.NewTracker(cfg.Pose)
	c := &Core{
		cfg:     cfg,
		queue:   queue,
		sink:    sink,
		buffer:  sweep.NewBuffer(),
		tracker: tracker,
		pose:    tracker.Snapshot(),
	}
	c.obstacles = ObstacleList{Pose: c.pose, Obstacles: []geometry.Obstacle{}}
	return c
}

// SetSink replaces the output sink. Call it before Run; the sink is only
// read from the goroutine that handles events.
func (c *Core) SetSink(sink Sink) {
	if sink == nil {
		sink = NopSink{}
	}
	c.sink = sink
}

// Run consumes events until ctx is cancelled or the queue is closed.
func (c *Core) Run(ctx context.Context) error {
	if c.queue == nil {
		return fmt.Errorf("pipeline: core has no event queue")
	}
	diagf("core started (scale=%.2f min_strength=%d rise=%d drop=%d)",
		c.cfg.Pose.Scale, c.cfg.Segment.MinStrength, c.cfg.Segment.RiseThreshold, c.cfg.Segment.DropThreshold)
	in := c.queue.Events()
	for {
		select {
		case <-ctx.Done():
			diagf("core stopping: %v", ctx.Err())
			return ctx.Err()
		case e, ok := <-in:
			if !ok {
				diagf("core stopping: queue closed")
				return nil
			}
			c.Handle(e)
		}
	}
}

// Handle applies one event synchronously. A panic in a stage is recovered and
// logged so the consumer keeps running.
func (c *Core) Handle(e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			opsf("recovered panic handling %T: %v", e, r)
			c.mu.Lock()
			c.stats.Panics++
			c.mu.Unlock()
		}
	}()

	switch ev := e.(type) {
	case events.ScanSample:
		c.handleSample(ev)
	case events.ScanComplete:
		c.handleComplete()
	case events.Move:
		c.handleMove(ev)
	case events.Bump:
		c.handleBump(ev)
	case events.Status:
		c.sink.PublishStatus(ev)
	case events.Info:
		diagf("robot %s: %s", ev.Level, ev.Text)
	case nil:
	default:
		diagf("ignoring unsupported event %T", e)
	}
}

func (c *Core) handleSample(s events.ScanSample) {
	ok := c.buffer.Push(sweep.Sample{
		BearingDeg:  s.BearingDeg,
		RangeCM:     s.RangeCM,
		Reflectance: s.Reflectance,
	})
	c.mu.Lock()
	if ok {
		c.stats.Samples++
	} else {
		c.stats.DroppedSamples++
	}
	c.mu.Unlock()
	if !ok {
		diagf("dropped invalid sample bearing=%.2f range=%.2f", s.BearingDeg, s.RangeCM)
		return
	}
	tracef("sample bearing=%.2f range=%.2f ir=%d", s.BearingDeg, s.RangeCM, s.Reflectance)
}

func (c *Core) handleComplete() {
	sw := c.buffer.Complete()
	at := c.tracker.Snapshot()
	if sw.Empty() {
		// Nothing to segment: the committed list stays and no one is notified.
		c.mu.Lock()
		c.stats.EmptySweeps++
		c.mu.Unlock()
		diagf("scan complete with no samples; skipping")
		return
	}

	segs := segment.Extract(sw, c.cfg.Segment)
	obstacles := geometry.ResolveAll(segs, at, c.cfg.Geometry)
	list := ObstacleList{
		SweepID:     sw.ID(),
		CompletedAt: sw.CompletedAt(),
		Pose:        at,
		Samples:     sw.Len(),
		Segments:    len(segs),
		Obstacles:   obstacles,
	}

	c.mu.Lock()
	c.obstacles = list
	c.stats.Sweeps++
	c.stats.Segments += int64(len(segs))
	c.stats.Obstacles += int64(len(obstacles))
	c.stats.Rejected += int64(len(segs) - len(obstacles))
	c.mu.Unlock()

	diagf("sweep %s: %d samples, %d segments, %d obstacles", sw.ID(), sw.Len(), len(segs), len(obstacles))
	c.sink.PublishObstacles(list)
}

func (c *Core) handleMove(m events.Move) {
	p, trail, emit := c.tracker.ApplyMove(m.DistanceCM, m.HeadingDeltaDeg)
	c.mu.Lock()
	c.pose = p
	c.stats.Moves++
	c.mu.Unlock()

	tracef("move dist=%.2f turn=%.2f -> (%.2f, %.2f, %.1f)", m.DistanceCM, m.HeadingDeltaDeg, p.X, p.Y, p.HeadingDeg)
	c.sink.PublishPose(p)
	if emit {
		c.sink.PublishTrail(trail)
	}
}

func (c *Core) handleBump(b events.Bump) {
	marker := c.bumpMarker(b.Side)
	c.mu.Lock()
	c.stats.Bumps++
	c.mu.Unlock()
	diagf("bump %s at (%.2f, %.2f)", b.Side, marker.X, marker.Y)
	c.sink.PublishBump(marker)
}

// bumpMarker places the contact point on the robot's perimeter: ahead-left
// for LEFT, ahead-right for RIGHT, straight ahead otherwise.
func (c *Core) bumpMarker(side events.BumpSide) BumpMarker {
	p := c.tracker.Snapshot()
	rel := 0.0
	switch side {
	case events.BumpLeft:
		rel = c.cfg.BumpAngleDeg
	case events.BumpRight:
		rel = -c.cfg.BumpAngleDeg
	}
	at := p.Project(rel, c.cfg.BumpOffset)
	return BumpMarker{Side: side, Pose: p, X: at.X, Y: at.Y}
}

// Pose returns the most recently committed pose.
func (c *Core) Pose() pose.Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose
}

// Obstacles returns the most recently committed obstacle list. The slice is a
// copy and may be modified by the caller.
func (c *Core) Obstacles() ObstacleList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l := c.obstacles
	l.Obstacles = append([]geometry.Obstacle(nil), c.obstacles.Obstacles...)
	if l.Obstacles == nil {
		l.Obstacles = []geometry.Obstacle{}
	}
	return l
}

// Stats returns a copy of the processing counters.
func (c *Core) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// PendingSamples reports how many samples are buffered for the sweep in
// progress.
func (c *Core) PendingSamples() int {
	return c.buffer.Len()
}

// CommittedAt returns the completion time of the committed sweep, or the zero
// time if none has completed.
func (c *Core) CommittedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.obstacles.CompletedAt
}
