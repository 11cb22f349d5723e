package embed

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/apca/claimaudit/internal/cache"
)

// CachedEmbedder wraps an Embedder with a cache so re-ingesting the same
// policy text does not re-call the embeddings API
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder creates a caching decorator around an embedder
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: c,
		ttl:   ttl,
	}
}

// EmbedDocuments embeds texts, serving cached vectors where possible and
// batching only the misses through the inner embedder
func (e *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if data, found := e.cache.Get(cache.Key(e.inner.Model(), text)); found {
			if v := decodeVector(data); len(v) == e.inner.Dimension() {
				vectors[i] = v
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := e.inner.EmbedDocuments(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, v := range fresh {
			vectors[missIdx[j]] = v
			_ = e.cache.Set(cache.Key(e.inner.Model(), missTexts[j]), encodeVector(v), e.ttl)
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query through the cache
func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the inner embedder's dimensionality
func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

// Model returns the inner embedder's model identifier
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v
}
