// Package corpus defines the documentation corpus the chat backend answers
// questions from. A corpus is an immutable snapshot of documents keyed by
// unique title, produced by an external collaborator (a crawler or an export
// job) and persisted as a timestamped JSON file.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrSnapshotNotFound is returned by Load when the snapshot file is absent.
var ErrSnapshotNotFound = errors.New("corpus: snapshot not found")

// Document is one documentation page. Title is the unique join key used by
// the retriever to map search hits back to full page content.
type Document struct {
	// Title is the page title, unique within a snapshot.
	Title string `json:"title"`
	// Content is the extracted plain-text content of the page.
	Content string `json:"content"`
}

// Set is a read-only corpus snapshot with O(1) title lookup.
type Set struct {
	docs    []Document
	byTitle map[string]int
}

// NewSet builds a Set from docs, validating that every title is unique.
func NewSet(docs []Document) (*Set, error) {
	byTitle := make(map[string]int, len(docs))
	for i, d := range docs {
		if d.Title == "" {
			return nil, fmt.Errorf("corpus: document %d has an empty title", i)
		}
		if prev, ok := byTitle[d.Title]; ok {
			return nil, fmt.Errorf("corpus: duplicate title %q (documents %d and %d)", d.Title, prev, i)
		}
		byTitle[d.Title] = i
	}
	return &Set{docs: docs, byTitle: byTitle}, nil
}

// Len returns the number of documents in the set.
func (s *Set) Len() int { return len(s.docs) }

// Docs returns the documents in snapshot order.
func (s *Set) Docs() []Document { return s.docs }

// ByTitle returns the document with the given title, if present.
func (s *Set) ByTitle(title string) (Document, bool) {
	i, ok := s.byTitle[title]
	if !ok {
		return Document{}, false
	}
	return s.docs[i], true
}

// Titles returns all document titles in snapshot order.
func (s *Set) Titles() []string {
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Title
	}
	return out
}

// snapshot is the on-disk envelope. The timestamp records when the external
// collaborator produced the snapshot; it is informational only.
type snapshot struct {
	Timestamp float64    `json:"timestamp"`
	Data      []Document `json:"data"`
}

// Load reads a corpus snapshot from path and validates it.
// Returns ErrSnapshotNotFound (wrapped) when the file does not exist.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", path, err)
	}
	if snap.Data == nil {
		return nil, fmt.Errorf("corpus: %s has no \"data\" field — not a corpus snapshot", path)
	}

	set, err := NewSet(snap.Data)
	if err != nil {
		return nil, fmt.Errorf("corpus: invalid snapshot %s: %w", path, err)
	}
	return set, nil
}

// Save writes docs to path as a timestamped snapshot, creating parent
// directories as needed.
func Save(path string, docs []Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("corpus: create snapshot dir: %w", err)
	}

	snap := snapshot{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      docs,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("corpus: write %s: %w", path, err)
	}
	return nil
}
