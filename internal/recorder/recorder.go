// Package recorder keeps an optional sqlite log of a session: every
// completed sweep with its obstacles, the pose trail and bump markers.
// The log is write-only from the perception side; nothing in it is loaded
// back into the core, so state never survives a restart.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cybot.radar/internal/monitoring"
	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

const recordBuffer = 256

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("recorder closed")

type record struct {
	at        time.Time
	obstacles *pipeline.ObstacleList
	trail     *pose.TrailSegment
	bump      *pipeline.BumpMarker
}

// Recorder implements pipeline.Sink. Publish calls only enqueue; Run does
// the writes so a slow disk never stalls the perception goroutine.
type Recorder struct {
	db        *sql.DB
	path      string
	sessionID string
	records   chan record
	closed    atomic.Bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// Open opens or creates the database at path, applies migrations and starts
// a new session labelled with transport.
func Open(path, transport string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	// sqlite has one writer; a single connection also keeps the per
	// connection pragmas in force.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	r := &Recorder{
		db:        db,
		path:      path,
		sessionID: uuid.NewString(),
		records:   make(chan record, recordBuffer),
	}
	if err := r.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at, transport) VALUES (?, ?, ?)`,
		r.sessionID, time.Now().UTC(), transport,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert session: %w", err)
	}
	monitoring.Logf("recorder: session %s recording to %s", r.sessionID, path)
	return r, nil
}

// SessionID identifies the session rows written by this recorder.
func (r *Recorder) SessionID() string { return r.sessionID }

// Close closes the database. Records still queued are discarded.
func (r *Recorder) Close() error {
	r.closed.Store(true)
	return r.db.Close()
}

// Run writes queued records until ctx is cancelled, then drains whatever is
// still queued before returning.
func (r *Recorder) Run(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (r *Recorder) enqueue(rec record) {
	if r.closed.Load() {
		return
	}
	select {
	case r.records <- rec:
	default:
		if n := r.dropped.Add(1); n%100 == 1 {
			monitoring.Logf("recorder: queue full, %d records dropped", n)
		}
	}
}

func (r *Recorder) write(rec record) {
	var err error
	switch {
	case rec.obstacles != nil:
		err = r.writeSweep(*rec.obstacles)
	case rec.trail != nil:
		err = r.writeTrail(rec.at, *rec.trail)
	case rec.bump != nil:
		err = r.writeBump(rec.at, *rec.bump)
	}
	if err != nil {
		r.failed.Add(1)
		monitoring.Logf("recorder: %v", err)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) writeSweep(l pipeline.ObstacleList) (err error) {
	id := l.SweepID
	if id == "" {
		id = uuid.NewString()
	}
	completed := l.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sweep %s: %w", id, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`
		INSERT INTO sweeps (
			sweep_id, session_id, completed_at, pose_x, pose_y, heading_deg,
			samples, segments, obstacle_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.sessionID, completed.UTC(), l.Pose.X, l.Pose.Y, l.Pose.HeadingDeg,
		l.Samples, l.Segments, len(l.Obstacles),
	); err != nil {
		return fmt.Errorf("insert sweep %s: %w", id, err)
	}

	for _, o := range l.Obstacles {
		if _, err = tx.Exec(`
			INSERT INTO obstacles (
				sweep_id, bearing_center_deg, closest_range_cm, chord_width_cm,
				world_x, world_y, start_bearing_deg, end_bearing_deg
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, o.BearingCenterDeg, o.ClosestRangeCM, o.ChordWidthCM,
			o.WorldX, o.WorldY, o.StartBearingDeg, o.EndBearingDeg,
		); err != nil {
			return fmt.Errorf("insert obstacle for sweep %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit sweep %s: %w", id, err)
	}
	return nil
}

func (r *Recorder) writeTrail(at time.Time, t pose.TrailSegment) error {
	_, err := r.db.Exec(`
		INSERT INTO trail (
			session_id, recorded_at, from_x, from_y, from_heading_deg,
			to_x, to_y, to_heading_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.sessionID, at.UTC(), t.From.X, t.From.Y, t.From.HeadingDeg,
		t.To.X, t.To.Y, t.To.HeadingDeg,
	)
	if err != nil {
		return fmt.Errorf("insert trail: %w", err)
	}
	return nil
}

func (r *Recorder) writeBump(at time.Time, b pipeline.BumpMarker) error {
	_, err := r.db.Exec(
		`INSERT INTO bumps (session_id, recorded_at, side, x, y) VALUES (?, ?, ?, ?, ?)`,
		r.sessionID, at.UTC(), b.Side.String(), b.X, b.Y,
	)
	if err != nil {
		return fmt.Errorf("insert bump: %w", err)
	}
	return nil
}

// PublishObstacles implements pipeline.Sink.
func (r *Recorder) PublishObstacles(l pipeline.ObstacleList) {
	l.Obstacles = append([]geometry.Obstacle(nil), l.Obstacles...)
	r.enqueue(record{at: time.Now(), obstacles: &l})
}

// PublishTrail implements pipeline.Sink.
func (r *Recorder) PublishTrail(t pose.TrailSegment) {
	r.enqueue(record{at: time.Now(), trail: &t})
}

// PublishBump implements pipeline.Sink.
func (r *Recorder) PublishBump(b pipeline.BumpMarker) {
	r.enqueue(record{at: time.Now(), bump: &b})
}

// PublishPose is a no-op; the trail carries every significant pose change.
func (r *Recorder) PublishPose(pose.Pose) {}

// PublishStatus is a no-op.
func (r *Recorder) PublishStatus(events.Status) {}

// Stats reports records written, dropped on a full queue and failed writes.
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}
