package vecindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docschat/docschat-go/internal/chunk"
)

// ErrArtifactNotFound is returned by Load when either artifact file of an
// index snapshot is missing. A snapshot is only valid as a complete pair.
var ErrArtifactNotFound = errors.New("vecindex: index artifacts not found")

// Artifact file suffixes. An index snapshot named "docs-v1" is stored as
// docs-v1.index.json (the vectors) and docs-v1.bundle.json (chunks plus raw
// embeddings, kept for rebuilds and debugging).
const (
	indexSuffix  = ".index.json"
	bundleSuffix = ".bundle.json"
)

// Bundle is the serialized companion of an index: the chunk list parallel to
// the stored vectors, and the raw embeddings themselves.
type Bundle struct {
	// Chunks is the chunk list; Chunks[i] corresponds to vector id i.
	Chunks []chunk.Chunk `json:"chunks"`
	// Embeddings are the raw vectors in the same order.
	Embeddings [][]float32 `json:"embeddings"`
}

// indexFile is the on-disk representation of a Flat index.
type indexFile struct {
	Dim     int         `json:"dim"`
	Vectors [][]float32 `json:"vectors"`
}

// Save writes the index and its bundle under dir using name as the shared
// base filename. The index file is written last so a crash mid-save leaves a
// pair that Load will reject as incomplete.
func Save(dir, name string, f *Flat, b *Bundle) error {
	if len(b.Chunks) != f.Size() || len(b.Embeddings) != f.Size() {
		return fmt.Errorf("vecindex: refusing to save inconsistent snapshot: %d chunks, %d embeddings, %d vectors",
			len(b.Chunks), len(b.Embeddings), f.Size())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vecindex: create %s: %w", dir, err)
	}

	if err := writeJSON(filepath.Join(dir, name+bundleSuffix), b); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, name+indexSuffix), indexFile{Dim: f.dim, Vectors: f.vectors})
}

// Load reads the artifact pair saved under dir/name. It fails with
// ErrArtifactNotFound if either file is missing and with a descriptive error
// if the pair is inconsistent — a partial write never loads silently.
func Load(dir, name string) (*Flat, *Bundle, error) {
	indexPath := filepath.Join(dir, name+indexSuffix)
	bundlePath := filepath.Join(dir, name+bundleSuffix)

	var idx indexFile
	if err := readJSON(indexPath, &idx); err != nil {
		return nil, nil, err
	}
	var b Bundle
	if err := readJSON(bundlePath, &b); err != nil {
		return nil, nil, err
	}

	if len(idx.Vectors) != len(b.Chunks) || len(idx.Vectors) != len(b.Embeddings) {
		return nil, nil, fmt.Errorf("vecindex: snapshot %q is inconsistent: %d vectors, %d chunks, %d embeddings",
			name, len(idx.Vectors), len(b.Chunks), len(b.Embeddings))
	}
	for i, v := range idx.Vectors {
		if len(v) != idx.Dim {
			return nil, nil, fmt.Errorf("vecindex: snapshot %q vector %d has dimension %d, header says %d",
				name, i, len(v), idx.Dim)
		}
	}

	return &Flat{dim: idx.Dim, vectors: idx.Vectors}, &b, nil
}

// writeJSON marshals v to path.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("vecindex: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vecindex: write %s: %w", path, err)
	}
	return nil
}

// readJSON unmarshals path into v, mapping a missing file to
// ErrArtifactNotFound.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return fmt.Errorf("vecindex: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("vecindex: parse %s: %w", path, err)
	}
	return nil
}
