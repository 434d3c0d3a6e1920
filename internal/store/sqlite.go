// Package store keeps a history of detection requests in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/ironsheep/route-vision/internal/detection"
)

// Record is one answered detection request.
type Record struct {
	ID         string                         `json:"id"`
	Timestamp  time.Time                      `json:"timestamp"`
	Target     string                         `json:"target"`
	Status     string                         `json:"status"`
	Count      int                            `json:"count"`
	Size       float64                        `json:"size"`
	FrameSeq   uint64                         `json:"frame_seq"`
	Rejected   int                            `json:"rejected"`
	Skipped    int                            `json:"skipped"`
	LatencyMs  float64                        `json:"latency_ms"`
	Error      string                         `json:"error,omitempty"`
	Detections []detection.ValidatedDetection `json:"detections"`
}

// SQLite is a detection history backed by a SQLite file.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLite, error) {
	dsn := path
	dbPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		dbPath = path[:idx]
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dsn, "_busy_timeout") {
		if strings.Contains(dsn, "?") {
			dsn += "&_busy_timeout=5000"
		} else {
			dsn += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	createRequestsTable := `
    CREATE TABLE IF NOT EXISTS requests (
        id TEXT PRIMARY KEY,
        created_at INTEGER NOT NULL,
        target TEXT NOT NULL,
        status TEXT NOT NULL,
        count INTEGER NOT NULL,
        size REAL NOT NULL,
        frame_seq INTEGER NOT NULL DEFAULT 0,
        rejected INTEGER NOT NULL DEFAULT 0,
        skipped INTEGER NOT NULL DEFAULT 0,
        latency_ms REAL NOT NULL DEFAULT 0,
        error TEXT,
        detections TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at);
    `

	if _, err := db.Exec(createRequestsTable); err != nil {
		return fmt.Errorf("error creating requests table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores r.
func (s *SQLite) Record(r Record) error {
	dets := r.Detections
	if dets == nil {
		dets = []detection.ValidatedDetection{}
	}
	detectionsJSON, err := json.Marshal(dets)
	if err != nil {
		return fmt.Errorf("error marshaling detections: %w", err)
	}

	var errText *string
	if r.Error != "" {
		errText = &r.Error
	}

	_, err = s.db.Exec(`
		INSERT INTO requests (
			id, created_at, target, status, count, size, frame_seq,
			rejected, skipped, latency_ms, error, detections
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Timestamp.UnixNano(),
		r.Target,
		r.Status,
		r.Count,
		r.Size,
		int64(r.FrameSeq),
		r.Rejected,
		r.Skipped,
		r.LatencyMs,
		errText,
		string(detectionsJSON),
	)
	if err != nil {
		return fmt.Errorf("error storing request: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLite) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, created_at, target, status, count, size, frame_seq,
		       rejected, skipped, latency_ms, error, detections
		FROM requests
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying requests: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var createdAt, frameSeq int64
		var errText sql.NullString
		var detectionsJSON string

		err := rows.Scan(
			&r.ID,
			&createdAt,
			&r.Target,
			&r.Status,
			&r.Count,
			&r.Size,
			&frameSeq,
			&r.Rejected,
			&r.Skipped,
			&r.LatencyMs,
			&errText,
			&detectionsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning request: %w", err)
		}

		r.Timestamp = time.Unix(0, createdAt)
		r.FrameSeq = uint64(frameSeq)
		r.Error = errText.String
		if err := json.Unmarshal([]byte(detectionsJSON), &r.Detections); err != nil {
			return nil, fmt.Errorf("error unmarshaling detections: %w", err)
		}

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return records, nil
}
