// Package vecindex implements an exact nearest-neighbor index over
// fixed-dimension embedding vectors, plus the on-disk artifact format used to
// persist a built index alongside its parallel chunk list.
//
// The index is flat: every query computes the squared Euclidean distance to
// every stored vector. That is deliberate — corpora here are thousands of
// chunks, not millions, and exact search keeps ranking deterministic.
package vecindex

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with the
// dimension established by the first vector added to the index.
var ErrDimensionMismatch = errors.New("vecindex: dimension mismatch")

// Hit is one search result: the insertion id of a stored vector and its
// squared Euclidean distance to the query.
type Hit struct {
	// ID is the 0-based insertion order of the matched vector.
	ID int
	// Distance is the squared Euclidean distance to the query vector.
	Distance float32
}

// Flat is an exact k-nearest-neighbor index. It is append-only during build;
// once built it is read-only and safe for unlimited concurrent readers.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat returns an empty index. The dimension is fixed by the first vector
// added.
func NewFlat() *Flat {
	return &Flat{}
}

// Size returns the number of stored vectors.
func (f *Flat) Size() int { return len(f.vectors) }

// Dim returns the established vector dimension, or 0 if the index is empty.
func (f *Flat) Dim() int { return f.dim }

// Add appends vectors in order. The first vector ever added establishes the
// index dimension; any later vector of a different length fails with
// ErrDimensionMismatch and nothing from that call is added.
func (f *Flat) Add(vectors ...[]float32) error {
	// Validate the whole batch before touching index state, so a failing
	// call leaves both the dimension and the stored vectors unchanged.
	dim := f.dim
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
		}
		if dim == 0 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	f.dim = dim
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns the k stored vectors nearest to query, ordered by ascending
// squared Euclidean distance with ties broken by insertion id. If k exceeds
// the number of stored vectors, all stored ids are returned — callers get a
// shorter result, never an error.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(f.vectors) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{ID: i, Distance: sqDist(query, v)}
	}

	// Stable sort on distance keeps equal-distance hits in insertion order,
	// which makes top-k results deterministic across runs.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	return hits[:k], nil
}

// sqDist computes the squared Euclidean distance between a and b.
// Accumulation is done in float64 to limit rounding drift on long vectors.
func sqDist(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
