package memory

import (
	"fmt"
	"slices"

	"ragchat/internal/domain"
)

// Index is an in-memory vector index using brute-force inner product search.
// Vectors are expected to be unit length, so the score is cosine similarity.
// An Index is filled once while building a corpus generation and is treated
// as read-only after it has been published; it does no locking of its own.
type Index struct {
	dimension int
	vectors   [][]float64
	payloads  []domain.Payload
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", domain.ErrConfiguration, dimension)
	}
	return &Index{dimension: dimension}, nil
}

// Add appends vectors with their payloads. Either all entries are added or none.
func (s *Index) Add(vectors [][]float64, payloads []domain.Payload) error {
	if len(vectors) != len(payloads) {
		return fmt.Errorf("%w: %d vectors, %d payloads", domain.ErrInvalidInput, len(vectors), len(payloads))
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d, want %d", domain.ErrDimensionMismatch, i, len(v), s.dimension)
		}
	}
	for _, v := range vectors {
		s.vectors = append(s.vectors, slices.Clone(v))
	}
	s.payloads = append(s.payloads, payloads...)
	return nil
}

// Search returns up to topK results ordered by descending score.
// Equal scores keep insertion order. A query of the wrong dimension or an
// empty index yields no results.
func (s *Index) Search(vector []float64, topK int) []domain.SearchResult {
	if topK <= 0 || len(s.vectors) == 0 || len(vector) != s.dimension {
		return []domain.SearchResult{}
	}

	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{Payload: s.payloads[i], Score: dot(s.vectors[i], vector)}
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return results[:min(topK, len(results))]
}

// Len returns the number of indexed entries.
func (s *Index) Len() int { return len(s.vectors) }

// Dimension returns the vector dimension accepted by the index.
func (s *Index) Dimension() int { return s.dimension }

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
