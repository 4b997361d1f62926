package tradelog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// Store persists trade-log entries in SQLite so restarts keep history.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the trade-log database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trade_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trade_log table: %w", err)
	}

	return &Store{db: db}, nil
}

// Append persists one entry.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trade_log (ts, category, message) VALUES (?, ?, ?)",
		e.Time.UnixMilli(), e.Category, e.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade_log entry: %w", err)
	}
	return nil
}

// Recent loads the newest n entries, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, category, message FROM trade_log ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade_log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var ts int64
		var e Entry
		if err := rows.Scan(&ts, &e.Category, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan trade_log row: %w", err)
		}
		e.Time = msToTime(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
