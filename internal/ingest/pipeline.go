package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/embed"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/vector"
)

// embedBatchSize bounds how many chunk texts go to the embedding API
// in one request.
const embedBatchSize = 64

// Pipeline splits, embeds and stores policy documents.
type Pipeline struct {
	splitter *Splitter
	embedder embed.Embedder
	store    vector.Store
	logger   *zap.Logger
}

func NewPipeline(splitter *Splitter, embedder embed.Embedder, store vector.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Process ingests one policy document and reports how many chunks were
// stored. Chunks from a previous ingest of the same policy are removed
// first so a shorter revision cannot leave stale tail chunks behind.
func (p *Pipeline) Process(ctx context.Context, meta model.PolicyMetadata, text string) (int, error) {
	chunks := p.splitter.Split(meta, text)
	if len(chunks) == 0 {
		p.logger.Warn("document produced no chunks",
			zap.String("policy_id", meta.PolicyID),
			zap.String("policy_name", meta.Name))
		return 0, nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks for policy %s: %w", meta.PolicyID, err)
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
	}

	removed, err := p.store.DeletePolicy(ctx, meta.PolicyID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks for policy %s: %w", meta.PolicyID, err)
	}
	if removed > 0 {
		p.logger.Info("replaced previous ingest",
			zap.String("policy_id", meta.PolicyID),
			zap.Int("removed_chunks", removed))
	}

	if err := p.store.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks for policy %s: %w", meta.PolicyID, err)
	}

	p.logger.Info("policy ingested",
		zap.String("policy_id", meta.PolicyID),
		zap.String("policy_name", meta.Name),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
