package worker

import (
	"context"

	"github.com/apca/claimaudit/internal/ingest"
	"github.com/apca/claimaudit/internal/model"
)

// embedService is the limiter key shared by all ingest jobs; chunk
// embedding is the only upstream call bulk ingestion makes.
const embedService = "embedding"

// IngestJob ingests one policy document through the shared pipeline.
type IngestJob struct {
	Path     string
	Meta     model.PolicyMetadata
	Pipeline *ingest.Pipeline
	Limiter  *Limiter
}

// IngestResult reports the outcome of one document.
type IngestResult struct {
	PolicyID string
	Path     string
	Chunks   int
	Err      error
}

// GetError returns the job error, if any
func (r IngestResult) GetError() error {
	return r.Err
}

// Execute loads, chunks, embeds and stores the document.
func (j IngestJob) Execute(ctx context.Context) Result {
	result := IngestResult{PolicyID: j.Meta.PolicyID, Path: j.Path}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, embedService); err != nil {
			result.Err = err
			return result
		}
	}

	text, err := ingest.LoadDocument(j.Path)
	if err != nil {
		result.Err = err
		return result
	}

	result.Chunks, result.Err = j.Pipeline.Process(ctx, j.Meta, text)
	return result
}
