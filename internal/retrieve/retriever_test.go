package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/vector"
)

type fixedEmbedder struct{ vector []float32 }

func (f *fixedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func (f *fixedEmbedder) Dimension() int { return len(f.vector) }
func (f *fixedEmbedder) Model() string  { return "fixed" }

type failingStore struct{}

func (failingStore) EnsureCollection(ctx context.Context, dimension int) error { return nil }
func (failingStore) Upsert(ctx context.Context, chunks []model.PolicyChunk) error {
	return nil
}
func (failingStore) Search(ctx context.Context, query []float32, limit int, filter vector.Filter) ([]model.ScoredChunk, error) {
	return nil, errors.New("index offline")
}
func (failingStore) DeletePolicy(ctx context.Context, policyID string) (int, error) { return 0, nil }
func (failingStore) Count(ctx context.Context) (int, error)                         { return 0, nil }
func (failingStore) Close() error                                                   { return nil }

func seededStore(t *testing.T) *vector.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := vector.NewMemoryStore()
	if err := store.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	err := store.Upsert(ctx, []model.PolicyChunk{
		{ChunkID: "a", PolicyID: "pol-1", PolicyName: "Knee Policy", Payer: "acme", Text: "covered after therapy", Embedding: []float32{1, 0, 0}},
		{ChunkID: "b", PolicyID: "pol-2", PolicyName: "Shoulder Policy", Payer: "globex", Text: "prior auth required", Embedding: []float32{0.9, 0.1, 0}},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return store
}

func testClaim() model.Claim {
	return model.Claim{
		ClaimID:  "clm-1",
		CPTCodes: []string{"29881"},
		ICDCodes: []string{"M23.205"},
		Payer:    "acme",
	}
}

func TestRetriever_ScopesToNamedPolicy(t *testing.T) {
	store := seededStore(t)
	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0, 0}}, store, 6, nil)

	claim := testClaim()
	claim.PolicyID = "pol-2"
	chunks, err := r.Retrieve(context.Background(), claim)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(chunks) != 1 || chunks[0].Chunk.PolicyID != "pol-2" {
		t.Errorf("Expected only pol-2 chunks, got %+v", chunks)
	}
}

func TestRetriever_BroadensWhenScopeIsEmpty(t *testing.T) {
	store := seededStore(t)
	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0, 0}}, store, 6, nil)

	claim := testClaim()
	claim.Payer = "unknown-payer"
	chunks, err := r.Retrieve(context.Background(), claim)
	if err != nil {
		t.Fatalf("Expected broadened search to succeed, got %v", err)
	}
	if len(chunks) != 2 {
		t.Errorf("Expected 2 chunks from broadened search, got %d", len(chunks))
	}
}

func TestRetriever_EmptyStoreReturnsErrNoEvidence(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	if err := store.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0, 0}}, store, 6, nil)

	_, err := r.Retrieve(ctx, testClaim())
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("Expected ErrNoEvidence, got %v", err)
	}
}

func TestRetriever_SearchFailureDegradesToNoEvidence(t *testing.T) {
	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0, 0}}, failingStore{}, 6, nil)

	_, err := r.Retrieve(context.Background(), testClaim())
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("Expected ErrNoEvidence when index is down, got %v", err)
	}
}

func TestQueryText(t *testing.T) {
	got := QueryText(testClaim())
	want := "coverage criteria for 29881 with diagnoses M23.205 under acme policy"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	bare := model.Claim{CPTCodes: []string{"99213", "99214"}}
	got = QueryText(bare)
	want = "coverage criteria for 99213, 99214"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
