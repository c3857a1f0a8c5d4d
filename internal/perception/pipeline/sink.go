package pipeline

import (
	"time"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

// ObstacleList is the resolved output of one completed sweep.
type ObstacleList struct {
	SweepID     string              `json:"sweep_id"`
	CompletedAt time.Time           `json:"completed_at"`
	Pose        pose.Pose           `json:"pose"`
	Samples     int                 `json:"samples"`
	Segments    int                 `json:"segments"`
	Obstacles   []geometry.Obstacle `json:"obstacles"`
}

// BumpMarker places a bumper contact relative to the pose at the time of the
// bump.
type BumpMarker struct {
	Side events.BumpSide `json:"side"`
	Pose pose.Pose       `json:"pose"`
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
}

// Sink receives the core's outputs. Methods are called on the core goroutine
// and should not block for long.
type Sink interface {
	PublishObstacles(ObstacleList)
	PublishPose(pose.Pose)
	PublishTrail(pose.TrailSegment)
	PublishBump(BumpMarker)
	PublishStatus(events.Status)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) PublishObstacles(ObstacleList)  {}
func (NopSink) PublishPose(pose.Pose)          {}
func (NopSink) PublishTrail(pose.TrailSegment) {}
func (NopSink) PublishBump(BumpMarker)         {}
func (NopSink) PublishStatus(events.Status)    {}

// MultiSink fans every output out to each sink in order.
type MultiSink []Sink

func (m MultiSink) PublishObstacles(l ObstacleList) {
	for _, s := range m {
		s.PublishObstacles(l)
	}
}

func (m MultiSink) PublishPose(p pose.Pose) {
	for _, s := range m {
		s.PublishPose(p)
	}
}

func (m MultiSink) PublishTrail(t pose.TrailSegment) {
	for _, s := range m {
		s.PublishTrail(t)
	}
}

func (m MultiSink) PublishBump(b BumpMarker) {
	for _, s := range m {
		s.PublishBump(b)
	}
}

func (m MultiSink) PublishStatus(st events.Status) {
	for _, s := range m {
		s.PublishStatus(st)
	}
}
