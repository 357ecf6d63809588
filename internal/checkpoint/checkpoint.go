// Package checkpoint persists per-batch result snapshots so an
// interrupted run can resume from the last completed batch.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const latestFile = "latest.json"

// Store writes result snapshots to a directory. The latest snapshot is
// always at latest.json; numbered snapshots are retained every Interval
// saves for rollback.
type Store[T any] struct {
	dir      string
	interval int
	saves    int
}

// NewStore creates the checkpoint directory if needed. An interval of 0
// disables numbered snapshots; only latest.json is maintained.
func NewStore[T any](dir string, interval int) (*Store[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store[T]{dir: dir, interval: interval}, nil
}

// Save overwrites latest.json with the full result set. The write goes
// through a temp file and rename so a crash mid-write never corrupts the
// resume point.
func (s *Store[T]) Save(results []T) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := filepath.Join(s.dir, latestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, latestFile)); err != nil {
		return fmt.Errorf("failed to finalize checkpoint: %w", err)
	}

	s.saves++
	if s.interval > 0 && s.saves%s.interval == 0 {
		snapshot := filepath.Join(s.dir, fmt.Sprintf("checkpoint-%04d.json", s.saves))
		if err := os.WriteFile(snapshot, data, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	return nil
}

// Load reads the latest snapshot. A missing checkpoint is not an error;
// it returns an empty result set.
func (s *Store[T]) Load() ([]T, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var results []T
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return results, nil
}

// Snapshots lists the retained numbered snapshot files, oldest first.
func (s *Store[T]) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "checkpoint-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
