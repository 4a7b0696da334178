// Package audit keeps a local sqlite trail of session lifecycle events —
// spawns and exits — for diagnosing a session after the fact
// when the terminal output itself is long gone.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection recording session events.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the database at path, creating parent directories
// as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	_, err := db.conn.Exec(`
	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node_name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_node ON session_events(node_name);
	CREATE INDEX IF NOT EXISTS idx_session_events_timestamp ON session_events(timestamp);
	`)
	return err
}

// Event is one recorded session lifecycle event.
type Event struct {
	ID        int64
	NodeName  string
	EventType string
	Details   string
	Timestamp time.Time
}

// LogEvent records an event, retrying briefly on SQLITE_BUSY since the
// daemon's per-connection goroutines may write concurrently.
func (db *DB) LogEvent(nodeName, eventType, details string) error {
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		_, err := db.conn.Exec(
			`INSERT INTO session_events (node_name, event_type, details, timestamp) VALUES (?, ?, ?, ?)`,
			nodeName, eventType, details, time.Now(),
		)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "SQLITE_BUSY") {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return err
	}
	return fmt.Errorf("audit: log event after %d retries: database locked", maxRetries)
}

// RecentEvents returns the most recent events across all nodes, newest
// first.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	rows, err := db.conn.Query(
		`SELECT id, node_name, event_type, details, timestamp
		 FROM session_events ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.NodeName, &e.EventType, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
