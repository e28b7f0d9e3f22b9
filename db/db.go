// Package db persists sessions, recording verdicts and movement traces
// to sqlite so recordings can be audited after the fact.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/motion"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and applies any
// pending migrations.
func NewDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// RecordSession stores a newly created session.
func (db *DB) RecordSession(id string, variant align.TemplateVariant, size geom.Size, startedAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, variant, image_width, image_height, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, string(variant), size.Width, size.Height, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// RecordVerdict stores the quality verdict of a finished recording.
func (db *DB) RecordVerdict(sessionID string, v motion.Verdict, recordedSeconds float64) error {
	_, err := db.Exec(
		`INSERT INTO verdicts (session_id, total_frames, lost_frames, lost_ratio,
		   avg_movement_px, movement_stddev_px, peak_movement_px,
		   had_excessive_movement, recorded_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, v.TotalFrames, v.LostFrames, v.LostRatio,
		v.AvgMovementPx, v.MovementStdDevPx, v.PeakMovementPx,
		v.HadExcessiveMovement, recordedSeconds,
	)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	return nil
}

// RecordMovementTrace stores the whole-recording movement magnitudes.
func (db *DB) RecordMovementTrace(sessionID string, trace []motion.DeltaPoint) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("record movement trace: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO movement_samples (session_id, at, magnitude_px) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record movement trace: %w", err)
	}
	defer stmt.Close()

	for _, d := range trace {
		if _, err := stmt.Exec(sessionID, d.At.UTC(), d.Magnitude); err != nil {
			return fmt.Errorf("record movement trace: %w", err)
		}
	}
	return tx.Commit()
}

// Verdict returns the most recent stored verdict for a session.
func (db *DB) Verdict(sessionID string) (motion.Verdict, error) {
	var v motion.Verdict
	err := db.QueryRow(
		`SELECT total_frames, lost_frames, lost_ratio, avg_movement_px,
		   movement_stddev_px, peak_movement_px, had_excessive_movement
		 FROM verdicts WHERE session_id = ?
		 ORDER BY verdict_id DESC LIMIT 1`, sessionID,
	).Scan(&v.TotalFrames, &v.LostFrames, &v.LostRatio, &v.AvgMovementPx,
		&v.MovementStdDevPx, &v.PeakMovementPx, &v.HadExcessiveMovement)
	if err != nil {
		return motion.Verdict{}, fmt.Errorf("load verdict for %s: %w", sessionID, err)
	}
	return v, nil
}

// MovementTrace returns the stored movement magnitudes for a session in
// chronological order.
func (db *DB) MovementTrace(sessionID string) ([]motion.DeltaPoint, error) {
	rows, err := db.Query(
		`SELECT at, magnitude_px FROM movement_samples
		 WHERE session_id = ? ORDER BY at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load movement trace for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var trace []motion.DeltaPoint
	for rows.Next() {
		var d motion.DeltaPoint
		if err := rows.Scan(&d.At, &d.Magnitude); err != nil {
			return nil, fmt.Errorf("load movement trace for %s: %w", sessionID, err)
		}
		trace = append(trace, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load movement trace for %s: %w", sessionID, err)
	}
	return trace, nil
}
