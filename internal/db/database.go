// Package db keeps the session alert list in an in-memory SQLite database.
// Nothing is written to disk; the list is gone when the database is closed.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"teb-dashboard/internal/models"
)

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates an empty in-memory alert database
func New() (*Database, error) {
	// a unique name keeps stores of different sessions apart
	connStr := fmt.Sprintf("file:alerts-%s?mode=memory&cache=shared", uuid.NewString())

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The memory database lives as long as its one connection does, so it
	// must never be recycled
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		turbine_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		ts INTEGER NOT NULL,
		priority TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		actions TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_read ON alerts(read);
	CREATE INDEX IF NOT EXISTS idx_alerts_turbine ON alerts(turbine_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection and drops every alert
func (db *Database) Close() error {
	return db.conn.Close()
}

// priorityOrder ranks critical first. Unknown priorities sort with medium.
const priorityOrder = `CASE priority
		WHEN 'critical' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		WHEN 'low' THEN 3
		ELSE 2 END`

const alertColumns = `id, type, source, turbine_id, title, message, ts, priority, read, actions`

// InsertAlerts appends the alerts whose id is not already present and
// returns how many were added
func (db *Database) InsertAlerts(alerts []models.AlertEvent) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	for _, a := range alerts {
		actions, err := json.Marshal(nonNil(a.Actions))
		if err != nil {
			return 0, fmt.Errorf("encoding actions of %s: %w", a.ID, err)
		}
		result, err := stmt.Exec(
			a.ID, a.Type, a.Source, a.TurbineID, a.Title, a.Message,
			toUnixNano(a.Timestamp), a.Priority, a.Read, string(actions),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting alert %s: %w", a.ID, err)
		}
		n, _ := result.RowsAffected()
		count += n
	}

	return count, tx.Commit()
}

// ListAlerts returns every alert, most urgent first and newest first within
// a priority
func (db *Database) ListAlerts() ([]models.AlertEvent, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY ` + priorityOrder + `, ts DESC, seq`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []models.AlertEvent{}
	for rows.Next() {
		var a models.AlertEvent
		var ts int64
		var actions string
		if err := rows.Scan(&a.ID, &a.Type, &a.Source, &a.TurbineID, &a.Title, &a.Message, &ts, &a.Priority, &a.Read, &actions); err != nil {
			return nil, err
		}
		a.Timestamp = fromUnixNano(ts)
		if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
			return nil, fmt.Errorf("decoding actions of %s: %w", a.ID, err)
		}
		if len(a.Actions) == 0 {
			a.Actions = nil
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead flags one alert as read. It reports whether the id exists.
func (db *Database) MarkAlertRead(id string) (bool, error) {
	result, err := db.conn.Exec(`UPDATE alerts SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// DeleteAlert removes one alert. It reports whether the id existed.
func (db *Database) DeleteAlert(id string) (bool, error) {
	result, err := db.conn.Exec(`DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// DeleteAllAlerts empties the list
func (db *Database) DeleteAllAlerts() error {
	_, err := db.conn.Exec(`DELETE FROM alerts`)
	return err
}

// GetUnreadCount returns the number of alerts not yet read
func (db *Database) GetUnreadCount() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM alerts WHERE read = 0`).Scan(&count)
	return count, err
}

// GetStats returns alert list statistics
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, unread, critical int64
	err := db.conn.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 'critical' THEN 1 ELSE 0 END), 0)
		FROM alerts
	`).Scan(&total, &unread, &critical)
	if err != nil {
		return nil, err
	}
	stats["total_alerts"] = total
	stats["unread_alerts"] = unread
	stats["critical_alerts"] = critical

	return stats, nil
}

func nonNil(actions []string) []string {
	if actions == nil {
		return []string{}
	}
	return actions
}

// toUnixNano stores the zero time as 0 so it round-trips
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
