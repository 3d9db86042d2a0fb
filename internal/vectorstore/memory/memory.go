// Package memory provides an in-memory vector store using brute-force
// cosine similarity. Points are keyed by chunk ID, so re-upserting an
// unchanged document rewrites identical points instead of duplicating them.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"advisor/internal/domain"
)

type point struct {
	chunk  domain.Chunk
	vector []float64
}

// Storage is a read-mostly in-memory vector store, safe for concurrent use.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]point
}

// NewStorage creates an empty in-memory store.
func NewStorage() *Storage {
	return &Storage{points: make(map[string]point)}
}

// Init fixes the vector dimension. Calling it again with the same dimension
// is a no-op; existing points survive so ingestion stays re-entrant.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return errors.New("dimension mismatch with existing collection")
	}
	s.dimension = dimension
	return nil
}

// Upsert stores chunks with their vectors, replacing points with the same
// chunk ID.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, ch := range chunks {
		if ch.ID == "" {
			return errors.New("chunk missing ID")
		}
		s.points[ch.ID] = point{chunk: ch, vector: vectors[i]}
	}
	return nil
}

// Search returns up to limit hits with score >= threshold, best first.
// The filter is applied during the scan, not as a post-filter.
func (s *Storage) Search(_ context.Context, vector []float64, limit int, threshold float64, filter *domain.SearchFilter) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 5
	}
	var hits []domain.SearchHit
	for _, p := range s.points {
		if !matches(p.chunk, filter) {
			continue
		}
		score := dot(p.vector, vector)
		if score < threshold {
			continue
		}
		hits = append(hits, domain.SearchHit{Chunk: p.chunk, Score: score, Vector: p.vector})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteBySource removes every point belonging to the given source file.
func (s *Storage) DeleteBySource(_ context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if p.chunk.SourceFile == sourceFile {
			delete(s.points, id)
		}
	}
	return nil
}

// Sources lists the distinct source files currently stored.
func (s *Storage) Sources(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.points {
		if _, ok := seen[p.chunk.SourceFile]; ok {
			continue
		}
		seen[p.chunk.SourceFile] = struct{}{}
		out = append(out, p.chunk.SourceFile)
	}
	sort.Strings(out)
	return out, nil
}

// Len reports the number of stored points. Useful for tests and stats.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func matches(ch domain.Chunk, filter *domain.SearchFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Category != "" && ch.Category != filter.Category {
		return false
	}
	if filter.Type != "" && ch.Type != filter.Type {
		return false
	}
	return true
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
