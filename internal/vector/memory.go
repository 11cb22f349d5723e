package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/apca/claimaudit/internal/model"
)

// MemoryStore keeps chunks and embeddings in process memory. It is the
// default backend when no database URL is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]model.PolicyChunk // chunkID -> chunk
	policies  map[string][]string          // policyID -> []chunkID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:   make(map[string]model.PolicyChunk),
		policies: make(map[string][]string),
	}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = dimension
		return nil
	}
	if s.dimension != dimension {
		return fmt.Errorf("%w: collection has %d, requested %d", ErrDimensionMismatch, s.dimension, dimension)
	}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, chunks []model.PolicyChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ChunkID == "" {
			return fmt.Errorf("chunk without ID for policy %s", chunk.PolicyID)
		}
		if s.dimension > 0 && len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d, collection has %d",
				ErrDimensionMismatch, chunk.ChunkID, len(chunk.Embedding), s.dimension)
		}

		if _, exists := s.chunks[chunk.ChunkID]; !exists {
			s.policies[chunk.PolicyID] = append(s.policies[chunk.PolicyID], chunk.ChunkID)
		}
		s.chunks[chunk.ChunkID] = chunk
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, limit int, filter Filter) ([]model.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	var results []model.ScoredChunk
	for _, chunk := range s.chunks {
		if !matchesFilter(chunk, filter) {
			continue
		}
		if len(chunk.Embedding) != len(query) {
			continue
		}
		results = append(results, model.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(query, chunk.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) DeletePolicy(ctx context.Context, policyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.policies[policyID]
	if !ok {
		return 0, nil
	}
	for _, id := range ids {
		delete(s.chunks, id)
	}
	delete(s.policies, policyID)
	return len(ids), nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
