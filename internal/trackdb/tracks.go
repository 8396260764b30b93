package trackdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibretrack/internal/gt"
)

// ErrRunNotFound is returned when a run ID names no stored run.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored export.
type Run struct {
	RunID        string   `json:"run_id"`
	Notes        string   `json:"notes"`
	StartedUnix  float64  `json:"started_unix"`
	FinishedUnix *float64 `json:"finished_unix"` // nil until FinishRun
	Particles    int      `json:"particles"`
	Tracks       int      `json:"tracks"`
	Points       int      `json:"points"`
	MeanLength   float64  `json:"mean_length"`
	MaxLength    float64  `json:"max_length"`
}

// Track is one stored polyline, without its points.
type Track struct {
	TrackID    string  `json:"track_id"`
	RunID      string  `json:"run_id"`
	Seq        int     `json:"seq"`
	PointCount int     `json:"point_count"`
	ArcLength  float64 `json:"arc_length"`
}

// BeginRun records a new run and returns its ID.
func (db *DB) BeginRun(notes string) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO gt_runs (run_id, notes, started_unix) VALUES (?, ?, ?)`,
		runID, notes, unixNow(),
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// FinishRun stores the export summary for runID.
func (db *DB) FinishRun(runID string, stats gt.ExportStats) error {
	res, err := db.Exec(`
		UPDATE gt_runs
		SET finished_unix = ?, particles = ?, track_count = ?, point_count = ?,
		    mean_length = ?, max_length = ?
		WHERE run_id = ?`,
		unixNow(), stats.Particles, stats.Tracks, stats.Points,
		stats.MeanLength, stats.MaxLength, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// TrackWriter inserts each exported track into a run. Each track is
// written in its own transaction.
type TrackWriter struct {
	db    *DB
	runID string
	seq   int
}

// Writer returns a TrackWriter appending to runID.
func (db *DB) Writer(runID string) *TrackWriter {
	return &TrackWriter{db: db, runID: runID}
}

// WriteTrack stores points as the next track of the run.
func (w *TrackWriter) WriteTrack(points []r3.Vec) (err error) {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin track tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	trackID := "trk_" + uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO gt_tracks (track_id, run_id, seq, point_count, arc_length) VALUES (?, ?, ?, ?, ?)`,
		trackID, w.runID, w.seq, len(points), gt.ArcLength(points),
	)
	if err != nil {
		return fmt.Errorf("insert track %d of run %s: %w", w.seq, w.runID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO gt_track_points (track_id, point_idx, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare point insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range points {
		if _, err = stmt.Exec(trackID, i, p.X, p.Y, p.Z); err != nil {
			return fmt.Errorf("insert point %d of %s: %w", i, trackID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit track %s: %w", trackID, err)
	}
	w.seq++
	return nil
}

// Runs lists stored runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, notes, started_unix, finished_unix, particles, track_count,
		       point_count, mean_length, max_length
		FROM gt_runs
		ORDER BY started_unix DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &r.Notes, &r.StartedUnix, &finished, &r.Particles,
			&r.Tracks, &r.Points, &r.MeanLength, &r.MaxLength); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedUnix = &finished.Float64
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tracks lists the tracks of runID in export order.
func (db *DB) Tracks(runID string) ([]Track, error) {
	var exists bool
	if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM gt_runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("look up run %s: %w", runID, err)
	}
	if !exists {
		return nil, fmt.Errorf("tracks of %s: %w", runID, ErrRunNotFound)
	}

	rows, err := db.Query(`
		SELECT track_id, run_id, seq, point_count, arc_length
		FROM gt_tracks
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks of %s: %w", runID, err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.TrackID, &t.RunID, &t.Seq, &t.PointCount, &t.ArcLength); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// TrackPoints returns the points of one track in order.
func (db *DB) TrackPoints(trackID string) ([]r3.Vec, error) {
	rows, err := db.Query(`
		SELECT x, y, z FROM gt_track_points
		WHERE track_id = ?
		ORDER BY point_idx`, trackID)
	if err != nil {
		return nil, fmt.Errorf("query points of %s: %w", trackID, err)
	}
	defer rows.Close()

	var points []r3.Vec
	for rows.Next() {
		var p r3.Vec
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// LoadRun returns every track of runID with its points, in export order.
func (db *DB) LoadRun(runID string) ([][]r3.Vec, error) {
	tracks, err := db.Tracks(runID)
	if err != nil {
		return nil, err
	}
	out := make([][]r3.Vec, 0, len(tracks))
	for _, t := range tracks {
		pts, err := db.TrackPoints(t.TrackID)
		if err != nil {
			return nil, err
		}
		out = append(out, pts)
	}
	return out, nil
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
