package audit

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/model"
)

func TestFinalizeEmptyTitleFallsBackSilently(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, nil, "APPROVE")
	draft.Rules[0].SourcePolicyTitle = ""

	out := finalize(model.Claim{ClaimID: "clm-1"}, draft, auditChunks(), ScoreResult{Confidence: 0.9}, "v2.1", zap.NewNop())

	if len(out.MissingInfo) != 0 {
		t.Errorf("Expected no missing info for an omitted title, got %v", out.MissingInfo)
	}
	if len(out.Citations) != 1 {
		t.Fatalf("Expected 1 citation, got %d", len(out.Citations))
	}
	cit := out.Citations[0]
	if cit.ChunkID != "c1" {
		t.Errorf("Expected fallback to best-ranked chunk c1, got %q", cit.ChunkID)
	}
	if cit.PolicyName != "Unspecified Policy" {
		t.Errorf("Expected placeholder policy name, got %q", cit.PolicyName)
	}
}

func TestFinalizeNamedTitleMissIsFlagged(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, nil, "APPROVE")
	draft.Rules[0].SourcePolicyTitle = "Nonexistent Policy"

	out := finalize(model.Claim{ClaimID: "clm-1"}, draft, auditChunks(), ScoreResult{Confidence: 0.9}, "v2.1", zap.NewNop())

	if len(out.MissingInfo) != 1 || !strings.Contains(out.MissingInfo[0], "Nonexistent Policy") {
		t.Errorf("Expected a missing info entry naming the bad title, got %v", out.MissingInfo)
	}
}

func TestExcerptSpan(t *testing.T) {
	text := "Coverage requires prior\nauthorization before surgery."

	start, end, ok := excerptSpan(text, "requires prior")
	if !ok || start != 9 || end != 23 {
		t.Errorf("Expected exact span [9,23), got [%d,%d) ok=%v", start, end, ok)
	}

	// Quote wrapped differently than the source still maps to raw offsets.
	start, end, ok = excerptSpan(text, "prior authorization before")
	if !ok {
		t.Fatal("Expected wrapped quote to be located")
	}
	if got := normalizeSpace(text[start:end]); got != "prior authorization before" {
		t.Errorf("Expected span to cover the quote, got %q", got)
	}

	if _, _, ok := excerptSpan(text, "never appears"); ok {
		t.Error("Expected no span for an absent quote")
	}
}

func TestBuildCitationWrappedQuoteGetsSpan(t *testing.T) {
	chunk := model.PolicyChunk{
		ChunkID:    "c9",
		PolicyID:   "pol-9",
		PolicyName: "Acme Knee Policy",
		Text:       "Arthroscopy is covered\nafter six weeks of failed conservative therapy.",
	}
	rule := DraftRule{
		CitationText:      coveredExcerpt,
		SourcePolicyTitle: "Acme Knee Policy",
	}

	cit := buildCitation(rule, &chunk)
	if cit.StartChar != 0 || cit.EndChar != len(chunk.Text) {
		t.Errorf("Expected span [0,%d), got [%d,%d)", len(chunk.Text), cit.StartChar, cit.EndChar)
	}
}
