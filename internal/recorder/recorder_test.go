package recorder

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "session.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// runUntilDrained starts Run, lets publish add records, then cancels and
// waits for the drain to finish.
func runUntilDrained(t *testing.T, r *Recorder, publish func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	publish()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func sampleList(id string) pipeline.ObstacleList {
	return pipeline.ObstacleList{
		SweepID:     id,
		CompletedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Pose:        pose.Pose{X: 4, Y: -8, HeadingDeg: 90},
		Samples:     91,
		Segments:    3,
		Obstacles: []geometry.Obstacle{
			{BearingCenterDeg: 120, ClosestRangeCM: 55, ChordWidthCM: 9, WorldX: 10, WorldY: -20, StartBearingDeg: 114, EndBearingDeg: 126},
			{BearingCenterDeg: 40, ClosestRangeCM: 30, ChordWidthCM: 6, WorldX: -3, WorldY: -7, StartBearingDeg: 36, EndBearingDeg: 44},
		},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	r := openTestRecorder(t)

	version, dirty, err := r.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	assert.NotEmpty(t, r.SessionID())
}

func TestOpen_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	r1, err := Open(path, "serial")
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := Open(path, "tcp")
	require.NoError(t, err)
	defer r2.Close()

	assert.NotEqual(t, r1.SessionID(), r2.SessionID())
	version, _, err := r2.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestMigrateDownAndUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	r, err := Open(path, "test")
	require.NoError(t, err)
	defer r.Close()

	// Down drops the sessions table, so only the schema round trip is checked.
	require.NoError(t, r.MigrateDown())
	version, _, err := r.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, r.MigrateUp())
	version, _, err = r.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRecorder_WritesSweepAndObstacles(t *testing.T) {
	r := openTestRecorder(t)

	runUntilDrained(t, r, func() {
		r.PublishObstacles(sampleList("sweep-a"))
	})

	sweeps, err := r.ListSweeps(r.SessionID(), 10)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)
	s := sweeps[0]
	assert.Equal(t, "sweep-a", s.SweepID)
	assert.Equal(t, r.SessionID(), s.SessionID)
	assert.Equal(t, pose.Pose{X: 4, Y: -8, HeadingDeg: 90}, s.Pose)
	assert.Equal(t, 91, s.Samples)
	assert.Equal(t, 3, s.Segments)
	assert.Equal(t, 2, s.ObstacleCount)
	assert.True(t, s.CompletedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))

	obs, err := r.SweepObstacles("sweep-a")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 40.0, obs[0].BearingCenterDeg)
	assert.Equal(t, 120.0, obs[1].BearingCenterDeg)
	assert.Equal(t, 114.0, obs[1].StartBearingDeg)

	assert.Equal(t, Stats{Written: 1}, r.Stats())
}

func TestRecorder_EmptySweepGetsID(t *testing.T) {
	r := openTestRecorder(t)

	runUntilDrained(t, r, func() {
		r.PublishObstacles(pipeline.ObstacleList{Obstacles: []geometry.Obstacle{}})
	})

	sweeps, err := r.ListSweeps("", 0)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)
	assert.NotEmpty(t, sweeps[0].SweepID)
	assert.Zero(t, sweeps[0].ObstacleCount)
}

func TestRecorder_DuplicateSweepFails(t *testing.T) {
	r := openTestRecorder(t)

	runUntilDrained(t, r, func() {
		r.PublishObstacles(sampleList("dup"))
		r.PublishObstacles(sampleList("dup"))
	})

	st := r.Stats()
	assert.Equal(t, int64(1), st.Written)
	assert.Equal(t, int64(1), st.Failed)

	obs, err := r.SweepObstacles("dup")
	require.NoError(t, err)
	assert.Len(t, obs, 2, "failed transaction must not leave partial obstacles")
}

func TestRecorder_TrailAndBumps(t *testing.T) {
	r := openTestRecorder(t)

	runUntilDrained(t, r, func() {
		r.PublishPose(pose.Pose{X: 1})
		r.PublishStatus(events.Status{})
		r.PublishTrail(pose.TrailSegment{From: pose.Pose{HeadingDeg: 90}, To: pose.Pose{Y: -20, HeadingDeg: 90}})
		r.PublishTrail(pose.TrailSegment{From: pose.Pose{Y: -20, HeadingDeg: 90}, To: pose.Pose{Y: -20, HeadingDeg: 180}})
		r.PublishBump(pipeline.BumpMarker{Side: events.BumpLeft, X: 3, Y: 4})
	})

	n, err := r.TrailLength(r.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := r.BumpCount(r.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 1, b)

	var side string
	require.NoError(t, r.db.QueryRow(`SELECT side FROM bumps`).Scan(&side))
	assert.Equal(t, "left", side)
}

func TestRecorder_ListSweepsNewestFirst(t *testing.T) {
	r := openTestRecorder(t)

	runUntilDrained(t, r, func() {
		for i, id := range []string{"s1", "s2", "s3"} {
			l := sampleList(id)
			l.CompletedAt = l.CompletedAt.Add(time.Duration(i) * time.Second)
			r.PublishObstacles(l)
		}
	})

	sweeps, err := r.ListSweeps(r.SessionID(), 2)
	require.NoError(t, err)
	require.Len(t, sweeps, 2)
	assert.Equal(t, "s3", sweeps[0].SweepID)
	assert.Equal(t, "s2", sweeps[1].SweepID)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	r := openTestRecorder(t)

	for i := 0; i < recordBuffer+5; i++ {
		r.PublishBump(pipeline.BumpMarker{})
	}
	assert.Equal(t, int64(5), r.Stats().Dropped)
}

func TestRecorder_PublishAfterCloseIgnored(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "session.db"), "test")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r.PublishBump(pipeline.BumpMarker{})
	assert.Zero(t, len(r.records))
	assert.ErrorIs(t, r.Run(context.Background()), ErrClosed)
}

func TestRecorder_PublishedListIsCopied(t *testing.T) {
	r := openTestRecorder(t)

	l := sampleList("copy")
	r.PublishObstacles(l)
	l.Obstacles[0].BearingCenterDeg = 999

	runUntilDrained(t, r, func() {})

	obs, err := r.SweepObstacles("copy")
	require.NoError(t, err)
	for _, o := range obs {
		assert.NotEqual(t, 999.0, o.BearingCenterDeg)
	}
}

func TestAdminRoutes_Sweeps(t *testing.T) {
	r := openTestRecorder(t)
	runUntilDrained(t, r, func() {
		r.PublishObstacles(sampleList("listed"))
	})

	mux := http.NewServeMux()
	r.AttachAdminRoutes(mux)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{"default", "", http.StatusOK, 1},
		{"current session", "?session=current", http.StatusOK, 1},
		{"other session", "?session=nope", http.StatusOK, 0},
		{"bad limit", "?limit=x", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/debug/sweeps"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantLen < 0 {
				return
			}
			var got []SweepRecord
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestAdminRoutes_Backup(t *testing.T) {
	r := openTestRecorder(t)
	mux := http.NewServeMux()
	r.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/recorder-backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
