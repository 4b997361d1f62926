// Package storage persists periodic JSON captures of engine state so a
// crashed or halted run can be inspected after the fact.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SnapshotManager writes timestamped state files into a directory and
// prunes old ones.
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager creates a manager rooted at dir. The directory is
// created lazily on first Save.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir}
}

func snapshotName(ts time.Time) string {
	return fmt.Sprintf("snapshot_%d.json", ts.UnixMilli())
}

// Save writes one state capture. state must be JSON-marshalable.
func (sm *SnapshotManager) Save(ts time.Time, state any) error {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(sm.dir, snapshotName(ts))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadLatest decodes the newest capture into dst. Returns false when no
// capture exists yet.
func (sm *SnapshotManager) LoadLatest(dst any) (bool, error) {
	files, err := sm.list()
	if err != nil || len(files) == 0 {
		return false, err
	}

	path := files[len(files)-1].path
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return true, nil
}

// Cleanup removes old captures, keeping only the newest keepCount.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	files, err := sm.list()
	if err != nil {
		return err
	}
	if len(files) <= keepCount {
		return nil
	}

	for _, f := range files[:len(files)-keepCount] {
		if err := os.Remove(f.path); err != nil {
			slog.Warn("SNAPSHOT_CLEANUP_FAILED", slog.String("path", f.path))
		}
	}
	return nil
}

type snapFile struct {
	path string
	ts   int64
}

// list returns capture files sorted oldest first.
func (sm *SnapshotManager) list() ([]snapFile, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var files []snapFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d.json", &ts); err != nil {
			continue
		}
		files = append(files, snapFile{path: filepath.Join(sm.dir, entry.Name()), ts: ts})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts < files[j].ts })
	return files, nil
}
