package trackers

import (
	"database/sql"
	"fmt"

	"github.com/samuelfneumann/onpolicy/experiment/tracker"
	_ "modernc.org/sqlite"
)

// SQLite tracks metrics in a SQLite database. Values are cached in
// memory and written in a single transaction on each call to Save, so
// that tracking never blocks on disk. Each run is distinguished by its
// run ID so that many runs can share a database.
type SQLite struct {
	db      *sql.DB
	run     string
	pending []row
}

type row struct {
	name  string
	step  int
	value float64
}

// NewSQLite opens or creates the database at path, tracking metrics
// under run
func NewSQLite(path, run string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("newSQLite: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scalars(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run TEXT NOT NULL,
			name TEXT NOT NULL,
			step INTEGER NOT NULL,
			value REAL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("newSQLite: %v", err)
	}

	return &SQLite{db: db, run: run}, nil
}

// Track caches a metric value
func (s *SQLite) Track(name string, value float64, step int) {
	s.pending = append(s.pending, row{name, step, value})
}

// Save writes all cached values to the database
func (s *SQLite) Save() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO scalars(run, name, step, value) VALUES(?,?,?,?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save: %v", err)
	}
	defer stmt.Close()

	for _, r := range s.pending {
		if _, err := stmt.Exec(s.run, r.name, r.step, r.value); err != nil {
			tx.Rollback()
			return fmt.Errorf("save: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: %v", err)
	}

	s.pending = s.pending[:0]
	return nil
}

// Load returns the saved data of the tracked run
func (s *SQLite) Load() (tracker.Data, error) {
	rows, err := s.db.Query(
		"SELECT name, step, value FROM scalars WHERE run = ? ORDER BY id",
		s.run)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	defer rows.Close()

	data := make(tracker.Data)
	for rows.Next() {
		var name string
		var p tracker.Point
		if err := rows.Scan(&name, &p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
		data[name] = append(data[name], p)
	}
	return data, rows.Err()
}

// Close closes the database. Values tracked since the last Save are
// discarded.
func (s *SQLite) Close() error {
	return s.db.Close()
}
