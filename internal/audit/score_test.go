package audit

import (
	"math"
	"strings"
	"testing"
)

func scoredDraft(citation string, missingInfo []string, decision string) *Draft {
	return &Draft{
		Decision:    decision,
		Explanation: "summary",
		Rules: []DraftRule{
			{
				RuleText:          "rule",
				Satisfied:         true,
				Explanation:       "reason",
				CitationText:      citation,
				SourcePolicyTitle: "Acme Knee Policy",
			},
		},
		MissingInfo: missingInfo,
	}
}

func TestScorer_IgnoresDraftSelfEstimate(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, nil, "APPROVE")
	draft.Confidence = 0.1 // self-estimate must not survive

	result := NewScorer().Score(draft, &Verification{}, auditChunks(), false)
	if math.Abs(result.Confidence-1.0) > 1e-9 {
		t.Errorf("Expected rubric score 1.0 regardless of self-estimate, got %f", result.Confidence)
	}
}

func TestScorer_MissingInfoCapsScore(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, []string{"operative notes absent"}, "APPROVE")

	result := NewScorer().Score(draft, &Verification{}, auditChunks(), false)
	if result.Confidence > 0.7 {
		t.Errorf("Expected cap at 0.7 with missing info, got %f", result.Confidence)
	}
	if !strings.Contains(result.Reasoning, "missing info") {
		t.Errorf("Expected reasoning to mention the cap, got %q", result.Reasoning)
	}
}

func TestScorer_NonDefinitiveDecisionCapsScore(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, nil, "PEND_INFO")

	result := NewScorer().Score(draft, &Verification{}, auditChunks(), false)
	if result.Confidence > 0.7 {
		t.Errorf("Expected cap at 0.7 for PEND_INFO, got %f", result.Confidence)
	}
}

func TestScorer_UnresolvedHallucinationCapsScore(t *testing.T) {
	draft := scoredDraft(coveredExcerpt, nil, "APPROVE")
	verification := &Verification{IsHallucination: true, Errors: []string{"fabricated quote"}}

	result := NewScorer().Score(draft, verification, auditChunks(), true)
	if result.Confidence > 0.4 {
		t.Errorf("Expected cap at 0.4 with unresolved errors, got %f", result.Confidence)
	}
}

func TestScorer_NoRulesScoresLow(t *testing.T) {
	draft := &Draft{Decision: "PEND_INFO", Explanation: "nothing to apply"}

	result := NewScorer().Score(draft, &Verification{}, auditChunks(), false)
	if result.Confidence > 0.3 {
		t.Errorf("Expected low score without rules, got %f", result.Confidence)
	}
}

func TestDeterministicChecks(t *testing.T) {
	chunks := auditChunks()

	clean := scoredDraft(coveredExcerpt, nil, "APPROVE")
	if errs := deterministicChecks(clean, chunks); len(errs) != 0 {
		t.Errorf("Expected no errors for literal citation, got %v", errs)
	}

	fabricated := scoredDraft("A quote that appears nowhere in the policy text.", nil, "APPROVE")
	errs := deterministicChecks(fabricated, chunks)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error for fabricated quote, got %v", errs)
	}
	if !strings.Contains(errs[0], "not a literal quote") {
		t.Errorf("Unexpected error text: %q", errs[0])
	}

	badTitle := scoredDraft(coveredExcerpt, nil, "APPROVE")
	badTitle.Rules[0].SourcePolicyTitle = "Nonexistent Policy"
	errs = deterministicChecks(badTitle, chunks)
	if len(errs) != 1 || !strings.Contains(errs[0], "unknown policy title") {
		t.Errorf("Expected unknown title error, got %v", errs)
	}

	empty := scoredDraft("", nil, "APPROVE")
	errs = deterministicChecks(empty, chunks)
	if len(errs) != 1 || !strings.Contains(errs[0], "empty citation_text") {
		t.Errorf("Expected empty citation error, got %v", errs)
	}
}

func TestDeterministicChecks_SplicedQuoteAcrossChunks(t *testing.T) {
	// Joining the tail of one chunk to the head of the next produces
	// text that exists in no retrieved chunk. It must be flagged even
	// though each half is genuine.
	spliced := scoredDraft("outpatient settings. Submit operative notes", nil, "APPROVE")
	errs := deterministicChecks(spliced, auditChunks())
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error for spliced quote, got %v", errs)
	}
	if !strings.Contains(errs[0], "not a literal quote") {
		t.Errorf("Unexpected error text: %q", errs[0])
	}
}

func TestScorer_SplicedQuoteNotCountedAsLiteral(t *testing.T) {
	spliced := scoredDraft("outpatient settings. Submit operative notes", nil, "APPROVE")

	result := NewScorer().Score(spliced, &Verification{}, auditChunks(), false)
	if !strings.Contains(result.Reasoning, "0 of 1 rules carry literal citations") {
		t.Errorf("Expected spliced citation to score as non-literal, got %q", result.Reasoning)
	}
}

func TestDeterministicChecks_WhitespaceInsensitive(t *testing.T) {
	// Line wrapping in the model output must not fail a genuine quote.
	wrapped := strings.Replace(coveredExcerpt, "covered after", "covered\nafter", 1)
	draft := scoredDraft(wrapped, nil, "APPROVE")
	if errs := deterministicChecks(draft, auditChunks()); len(errs) != 0 {
		t.Errorf("Expected wrapped quote to pass, got %v", errs)
	}
}

func TestMergeVerification(t *testing.T) {
	modelVerdict := &Verification{IsHallucination: false, ImprovementNotes: ""}
	merged := mergeVerification(modelVerdict, []string{"rule 1 citation_text is not a literal quote"})
	if !merged.IsHallucination {
		t.Error("Expected deterministic errors to flag the draft")
	}
	if len(merged.Errors) != 1 {
		t.Errorf("Expected deterministic errors carried over, got %v", merged.Errors)
	}
	if merged.ImprovementNotes == "" {
		t.Error("Expected default improvement notes to be filled in")
	}

	clean := mergeVerification(&Verification{}, nil)
	if clean.IsHallucination {
		t.Error("Expected clean merge to stay clean")
	}
}
