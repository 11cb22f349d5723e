// Package retrieve builds the evidence bundle an audit runs against.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/embed"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/vector"
)

// ErrNoEvidence is returned when neither the scoped nor the broadened
// search yields any chunks. Audits must fail fast on it rather than
// draft a decision with nothing to cite.
var ErrNoEvidence = errors.New("no policy evidence found for claim")

// DefaultLimit caps how many chunks one audit sees.
const DefaultLimit = 6

// Retriever embeds a claim-derived query and searches the chunk store.
type Retriever struct {
	embedder embed.Embedder
	store    vector.Store
	limit    int
	logger   *zap.Logger
}

func NewRetriever(embedder embed.Embedder, store vector.Store, limit int, logger *zap.Logger) *Retriever {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, limit: limit, logger: logger}
}

// Retrieve returns the evidence chunks for a claim, best match first.
// The search is scoped to the claim's policy when one is named, else to
// its payer. If the scoped search comes back empty the search is
// broadened once to the whole collection before giving up.
func (r *Retriever) Retrieve(ctx context.Context, claim model.Claim) ([]model.ScoredChunk, error) {
	query, err := r.embedder.EmbedQuery(ctx, QueryText(claim))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := scopeFilter(claim)
	chunks := r.search(ctx, query, filter)
	if len(chunks) == 0 && len(filter) > 0 {
		r.logger.Info("scoped search empty, broadening",
			zap.String("claim_id", claim.ClaimID))
		chunks = r.search(ctx, query, nil)
	}
	if len(chunks) == 0 {
		return nil, ErrNoEvidence
	}
	return chunks, nil
}

// search degrades store failures to an empty result. A broken index
// should read as "no evidence", which downstream turns into PEND_INFO,
// not as a hard audit error.
func (r *Retriever) search(ctx context.Context, query []float32, filter vector.Filter) []model.ScoredChunk {
	chunks, err := r.store.Search(ctx, query, r.limit, filter)
	if err != nil {
		r.logger.Warn("vector search failed", zap.Error(err))
		return nil
	}
	return chunks
}

func scopeFilter(claim model.Claim) vector.Filter {
	if claim.PolicyID != "" {
		return vector.Filter{"policy_id": claim.PolicyID}
	}
	if claim.Payer != "" {
		return vector.Filter{"payer": claim.Payer}
	}
	return nil
}

// QueryText renders the retrieval query for a claim.
func QueryText(claim model.Claim) string {
	var b strings.Builder
	b.WriteString("coverage criteria for ")
	b.WriteString(strings.Join(claim.CPTCodes, ", "))
	if len(claim.ICDCodes) > 0 {
		b.WriteString(" with diagnoses ")
		b.WriteString(strings.Join(claim.ICDCodes, ", "))
	}
	if claim.Payer != "" {
		b.WriteString(" under ")
		b.WriteString(claim.Payer)
		b.WriteString(" policy")
	}
	return b.String()
}
