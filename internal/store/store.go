// Package store keeps a history of published readings in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/logic"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id       INTEGER PRIMARY KEY,
	ts_ms    INTEGER NOT NULL,
	sensor   INTEGER NOT NULL,
	kind     TEXT    NOT NULL,
	sign     INTEGER NOT NULL,
	units    INTEGER NOT NULL,
	decimals INTEGER NOT NULL,
	msec     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS readings_channel ON readings (sensor, kind, id);
`

const columns = "ts_ms, sensor, kind, sign, units, decimals, msec"

// Store is a reading history backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite serialises writers anyway and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends a reading.
func (s *Store) Record(r logic.Reading) error {
	m := r.Measurement
	_, err := s.db.Exec(
		"INSERT INTO readings ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.Timestamp.UnixMilli(), m.SensorAddr, m.Kind.String(), m.Sign, m.Units, m.Decimals, m.Msec,
	)
	if err != nil {
		return fmt.Errorf("record reading: %w", err)
	}
	return nil
}

// Recent returns up to limit readings, newest first.
func (s *Store) Recent(limit int) ([]logic.Reading, error) {
	return s.query("SELECT "+columns+" FROM readings ORDER BY id DESC LIMIT ?", limit)
}

// Latest returns the newest reading of every sensor and kind, ordered by
// sensor with temperature before humidity.
func (s *Store) Latest() ([]logic.Reading, error) {
	return s.query(`SELECT ` + columns + ` FROM readings
		WHERE id IN (SELECT MAX(id) FROM readings GROUP BY sensor, kind)
		ORDER BY sensor, kind DESC`)
}

// Count returns the number of stored readings.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (s *Store) query(q string, args ...any) ([]logic.Reading, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []logic.Reading
	for rows.Next() {
		var (
			ts                      int64
			sensor, units, decimals uint8
			sign                    int8
			kind                    string
			msec                    uint32
		)
		if err := rows.Scan(&ts, &sensor, &kind, &sign, &units, &decimals, &msec); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		k, err := decoder.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, logic.Reading{
			Timestamp: time.UnixMilli(ts).UTC(),
			Measurement: decoder.Measurement{
				Msec:       msec,
				SensorAddr: sensor,
				Kind:       k,
				Units:      units,
				Decimals:   decimals,
				Sign:       sign,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
