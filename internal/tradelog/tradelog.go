// Package tradelog keeps the user-visible trade log: a bounded in-memory
// ring of categorized entries, optionally mirrored into SQLite.
package tradelog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one trade-log line.
type Entry struct {
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

// Log is a bounded ring of entries. Safe for concurrent use; the engine
// appends from its loop while the status server reads.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	count   int
	store   *Store
	now     func() time.Time
}

// New creates a log capped at max entries. store may be nil for
// memory-only operation.
func New(max int, store *Store) *Log {
	if max <= 0 {
		max = 200
	}
	return &Log{
		entries: make([]Entry, max),
		store:   store,
		now:     time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Append records one entry, evicting the oldest when full.
func (l *Log) Append(category, message string) {
	l.mu.Lock()
	e := Entry{Time: l.now(), Category: category, Message: message}
	l.entries[l.head] = e
	l.head = (l.head + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
	store := l.store
	l.mu.Unlock()

	if store != nil {
		if err := store.Append(context.Background(), e); err != nil {
			slog.Warn("TRADELOG_PERSIST_FAILED", slog.Any("error", err))
		}
	}
}

// Entries returns a chronological copy of the ring.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.count)
	start := l.head - l.count
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}

// Preload seeds the ring from persisted history, oldest first.
func (l *Log) Preload(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.entries[l.head] = e
		l.head = (l.head + 1) % len(l.entries)
		if l.count < len(l.entries) {
			l.count++
		}
	}
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
