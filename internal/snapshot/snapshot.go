// Package snapshot periodically folds live actor-pool state to disk so that
// recovery after a restart only needs to replay the WAL tail written since
// the last snapshot, rather than the full history.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskengine/internal/state"
)

const filePrefix = "snapshot_"
const fileSuffix = ".json"

// Document is the on-disk representation of a point-in-time snapshot.
type Document struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	States    []*state.UserState  `json:"states"`
}

// New builds a Document from the given subject states, stamping it with a
// fresh UUID and the current time.
func New(states []*state.UserState) Document {
	return Document{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), States: states}
}

// Write serializes doc to dir using an atomic temp-file-then-rename so a
// crash mid-write never leaves a partially-written snapshot visible to
// LoadLatest.
func Write(dir string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s%s%s", filePrefix, doc.ID, fileSuffix)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: rename: %w", err)
	}
	return finalPath, nil
}

// LoadLatest returns the most recently created snapshot in dir, or a nil
// Document and false if none exists yet.
func LoadLatest(dir string) (*Document, bool, error) {
	paths, err := listSnapshots(dir)
	if err != nil {
		return nil, false, err
	}
	if len(paths) == 0 {
		return nil, false, nil
	}
	latest := paths[len(paths)-1]

	f, err := os.Open(latest)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: open %s: %w", latest, err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("snapshot: decode %s: %w", latest, err)
	}
	return &doc, true, nil
}

// Cleanup removes all but the keep most recent snapshots in dir.
func Cleanup(dir string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	paths, err := listSnapshots(dir)
	if err != nil {
		return err
	}
	if len(paths) <= keep {
		return nil
	}
	for _, stale := range paths[:len(paths)-keep] {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("snapshot: remove %s: %w", stale, err)
		}
	}
	return nil
}

// listSnapshots returns snapshot file paths in dir sorted oldest-first by
// modification time. The filename carries the snapshot's UUID, not a
// timestamp, so recency can't be read off the name; the rename in Write
// happens at creation time, making mtime an accurate creation order.
func listSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read dir %s: %w", dir, err)
	}
	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("snapshot: stat %s: %w", name, err)
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.Before(candidates[j].modTime) })
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths, nil
}
