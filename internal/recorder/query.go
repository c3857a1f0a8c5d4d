package recorder

import (
	"fmt"
	"time"

	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

// SweepRecord is one row of the sweeps table.
type SweepRecord struct {
	SweepID       string    `json:"sweep_id"`
	SessionID     string    `json:"session_id"`
	CompletedAt   time.Time `json:"completed_at"`
	Pose          pose.Pose `json:"pose"`
	Samples       int       `json:"samples"`
	Segments      int       `json:"segments"`
	ObstacleCount int       `json:"obstacle_count"`
}

// ListSweeps returns the most recent sweeps of a session, newest first. An
// empty sessionID lists sweeps from every session.
func (r *Recorder) ListSweeps(sessionID string, limit int) ([]SweepRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT sweep_id, session_id, completed_at, pose_x, pose_y, heading_deg,
			samples, segments, obstacle_count
		FROM sweeps
		WHERE ? = '' OR session_id = ?
		ORDER BY completed_at DESC, rowid DESC
		LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepRecord
	for rows.Next() {
		var s SweepRecord
		if err := rows.Scan(
			&s.SweepID, &s.SessionID, &s.CompletedAt,
			&s.Pose.X, &s.Pose.Y, &s.Pose.HeadingDeg,
			&s.Samples, &s.Segments, &s.ObstacleCount,
		); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SweepObstacles returns the obstacles recorded for a sweep in bearing order.
func (r *Recorder) SweepObstacles(sweepID string) ([]geometry.Obstacle, error) {
	rows, err := r.db.Query(`
		SELECT bearing_center_deg, closest_range_cm, chord_width_cm,
			world_x, world_y, start_bearing_deg, end_bearing_deg
		FROM obstacles
		WHERE sweep_id = ?
		ORDER BY bearing_center_deg`,
		sweepID,
	)
	if err != nil {
		return nil, fmt.Errorf("query obstacles: %w", err)
	}
	defer rows.Close()

	out := []geometry.Obstacle{}
	for rows.Next() {
		var o geometry.Obstacle
		if err := rows.Scan(
			&o.BearingCenterDeg, &o.ClosestRangeCM, &o.ChordWidthCM,
			&o.WorldX, &o.WorldY, &o.StartBearingDeg, &o.EndBearingDeg,
		); err != nil {
			return nil, fmt.Errorf("scan obstacle: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TrailLength returns the number of trail segments recorded for a session.
func (r *Recorder) TrailLength(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trail WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trail: %w", err)
	}
	return n, nil
}

// BumpCount returns the number of bumps recorded for a session.
func (r *Recorder) BumpCount(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM bumps WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bumps: %w", err)
	}
	return n, nil
}
