// Package cache is the panel's local mirror of backend state: device list,
// scene list, environment snapshot and session username, plus a diagnostic
// event log. It is a cache, never a source of truth; every value read from
// it is presumed stale until the next server round trip overwrites it, and
// clearing it entirely must never break a caller.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"homepanel/internal/gateway"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and runs migrations
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// put overwrites a mirror entry. Mirrors are whole-value: there is no delta
// merge, the previous value is simply replaced.
func (db *DB) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO mirror (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// get reads a mirror entry into out. A missing key is not an error; it
// leaves out untouched and returns false.
func (db *DB) get(key string, out interface{}) (bool, error) {
	var data []byte
	err := db.conn.QueryRow("SELECT value FROM mirror WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a mirror entry
func (db *DB) Delete(key string) error {
	_, err := db.conn.Exec("DELETE FROM mirror WHERE key = ?", key)
	return err
}

// Clear drops every mirror entry. Callers fall back to defaults afterwards.
func (db *DB) Clear() error {
	_, err := db.conn.Exec("DELETE FROM mirror")
	return err
}

// --- Session ---

// SetUsername persists the logged-in user
func (db *DB) SetUsername(username string) error {
	return db.put(KeyUsername, username)
}

// Username returns the persisted user, or "" when no session is stored
func (db *DB) Username() string {
	var username string
	if ok, err := db.get(KeyUsername, &username); err != nil || !ok {
		return ""
	}
	return username
}

// ClearUsername forgets the persisted session
func (db *DB) ClearUsername() error {
	return db.Delete(KeyUsername)
}

// --- Device mirror ---

// SaveDevices overwrites the device-state mirror
func (db *DB) SaveDevices(devices []gateway.Device) error {
	return db.put(KeyDevices, devices)
}

// Devices returns the last-known device list, empty when nothing is cached
func (db *DB) Devices() ([]gateway.Device, error) {
	var devices []gateway.Device
	if _, err := db.get(KeyDevices, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Device returns the last-known state of one device by name
func (db *DB) Device(name string) (*gateway.Device, error) {
	devices, err := db.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// --- Scene mirror ---

// SaveScenes overwrites the scene-list mirror
func (db *DB) SaveScenes(scenes []gateway.Scene) error {
	return db.put(KeyScenes, scenes)
}

// Scenes returns the last-known scene list, empty when nothing is cached
func (db *DB) Scenes() ([]gateway.Scene, error) {
	var scenes []gateway.Scene
	if _, err := db.get(KeyScenes, &scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// --- Environment snapshot ---

// SaveSnapshot overwrites the environment snapshot mirror
func (db *DB) SaveSnapshot(snap Snapshot) error {
	return db.put(KeySnapshot, snap)
}

// Snapshot returns the last pushed environment snapshot, or nil if none has
// arrived yet
func (db *DB) Snapshot() (*Snapshot, error) {
	var snap Snapshot
	ok, err := db.get(KeySnapshot, &snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// --- Event log ---

// LogEvent records a diagnostic event
func (db *DB) LogEvent(source EventSource, eventType EventType, message string, details interface{}) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
	}

	_, err := db.conn.Exec(
		"INSERT INTO event_log (timestamp, source, event_type, message, details) VALUES (?, ?, ?, ?, ?)",
		time.Now(), source, eventType, message, detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// Events retrieves events with optional filtering, newest first
func (db *DB) Events(filter EventFilter) ([]Event, error) {
	query := "SELECT id, timestamp, source, event_type, message, details FROM event_log WHERE 1=1"
	args := []interface{}{}

	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, *filter.Source)
	}
	if filter.EventType != nil {
		query += " AND event_type = ?"
		args = append(args, *filter.EventType)
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.Since)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Source, &ev.EventType, &ev.Message, &details); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if details.Valid && details.String != "" {
			ev.Details = json.RawMessage(details.String)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// PruneEvents removes events older than the given time
func (db *DB) PruneEvents(olderThan time.Time) (int64, error) {
	result, err := db.conn.Exec("DELETE FROM event_log WHERE timestamp < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return result.RowsAffected()
}
