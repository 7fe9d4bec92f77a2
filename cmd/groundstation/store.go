package main

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists decoded telemetry frames, grounded on
// banshee-data-velocity.report/db/db.go's shape: a thin *sql.DB
// wrapper, schema created on open, one INSERT per observation. Uses
// modernc.org/sqlite (pure Go, no cgo) rather than mattn/go-sqlite3,
// matching the retrieved pack's own choice — appropriate for a ground
// station binary built on whatever laptop shows up at the launch site.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS frames (
			flight_id TEXT NOT NULL,
			phase INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			altitude REAL NOT NULL,
			vertical_velocity REAL NOT NULL,
			vertical_acceleration REAL NOT NULL,
			apogee_prediction REAL NOT NULL,
			flap_command REAL NOT NULL,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_frames_flight ON frames(flight_id, timestamp_ms);
	`); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordFrame inserts one decoded telemetry frame under flightID.
func (s *Store) RecordFrame(flightID uuid.UUID, f TelemetryFrame) error {
	_, err := s.db.Exec(
		`INSERT INTO frames (flight_id, phase, timestamp_ms, altitude, vertical_velocity, vertical_acceleration, apogee_prediction, flap_command)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flightID.String(), f.Phase, f.TimestampMs, f.Altitude, f.VerticalVelocity, f.VerticalAcceleration, f.ApogeePrediction, f.FlapCommand,
	)
	return err
}

// FramesForFlight returns every recorded frame for a flight, ordered
// by timestamp, for charting.
func (s *Store) FramesForFlight(flightID uuid.UUID) ([]TelemetryFrame, error) {
	rows, err := s.db.Query(
		`SELECT phase, timestamp_ms, altitude, vertical_velocity, vertical_acceleration, apogee_prediction, flap_command
		 FROM frames WHERE flight_id = ? ORDER BY timestamp_ms ASC`,
		flightID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []TelemetryFrame
	for rows.Next() {
		var f TelemetryFrame
		if err := rows.Scan(&f.Phase, &f.TimestampMs, &f.Altitude, &f.VerticalVelocity, &f.VerticalAcceleration, &f.ApogeePrediction, &f.FlapCommand); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames recorded for flight %s", flightID)
	}
	return frames, nil
}
