package chain

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

// The associations table has no uniqueness constraint so that duplicate
// pairs in a foreign or hand-edited file are detected on load instead of
// being silently merged.
const schema = `
CREATE TABLE IF NOT EXISTS associations (
    song    TEXT NOT NULL,
    next    TEXT NOT NULL,
    weight  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_associations_song ON associations(song);
`

const sqliteFormatVersion = 1

var sqliteHeader = []byte("SQLite format 3\x00")

func readSQLite(path string) ([]record, error) {
	if err := checkSQLiteHeader(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioError("load", path, err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return nil, malformed(path, "read version: %v", err)
	}
	if version > sqliteFormatVersion {
		return nil, malformed(path, "unsupported format version %d", version)
	}

	rows, err := db.Query(`SELECT song, next, weight FROM associations`)
	if err != nil {
		return nil, malformed(path, "query associations: %v", err)
	}
	defer rows.Close()

	var recs []record
	for rows.Next() {
		var song, next, weight any
		if err := rows.Scan(&song, &next, &weight); err != nil {
			return nil, malformed(path, "scan row %d: %v", len(recs)+1, err)
		}
		r, err := sqliteRecord(song, next, weight)
		if err != nil {
			return nil, malformed(path, "row %d: %v", len(recs)+1, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, malformed(path, "read rows: %v", err)
	}
	return recs, nil
}

func checkSQLiteHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ioError("load", path, err)
	}
	defer f.Close()

	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return malformed(path, "file too short to be a database")
		}
		return ioError("load", path, err)
	}
	if !bytes.Equal(buf, sqliteHeader) {
		return malformed(path, "not a SQLite database")
	}
	return nil
}

// sqliteRecord converts dynamically typed column values. SQLite lets any
// column hold any type, so the declared schema alone proves nothing.
func sqliteRecord(song, next, weight any) (record, error) {
	from, ok := song.(string)
	if !ok {
		return record{}, fmt.Errorf("song is %T, want text", song)
	}
	to, ok := next.(string)
	if !ok {
		return record{}, fmt.Errorf("next is %T, want text", next)
	}
	var w float64
	switch v := weight.(type) {
	case float64:
		w = v
	case int64:
		w = float64(v)
	default:
		return record{}, fmt.Errorf("weight is %T, want real", weight)
	}
	return record{from: from, to: to, weight: w}, nil
}

func writeSQLite(path string, s *Store) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, sqliteFormatVersion)); err != nil {
		return fmt.Errorf("pragma: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO associations (song, next, weight) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	for e := range s.Edges() {
		if _, err := stmt.Exec(string(e.From), string(e.To), float64(e.Weight)); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("insert %q -> %q: %w", e.From, e.To, err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("close statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return db.Close()
}
