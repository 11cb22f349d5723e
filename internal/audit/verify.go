package audit

import (
	"fmt"
	"strings"

	"github.com/apca/claimaudit/internal/model"
)

// deterministicChecks validates the parts of a draft that need no
// model judgment: every citation must appear literally inside a single
// retrieved chunk and every cited policy title must belong to a
// retrieved chunk. Findings from here are merged into the verifier
// model's output, so a verifier that misses a fabricated quote cannot
// clear the draft.
func deterministicChecks(draft *Draft, chunks []model.ScoredChunk) []string {
	chunkTexts := normalizedChunkTexts(chunks)
	titles := make(map[string]bool, len(chunks))
	for _, sc := range chunks {
		titles[sc.Chunk.PolicyName] = true
	}

	var errs []string
	for i, rule := range draft.Rules {
		citation := normalizeSpace(rule.CitationText)
		if citation == "" {
			errs = append(errs, fmt.Sprintf("rule %d has an empty citation_text", i+1))
		} else if !quotedInAnyChunk(citation, chunkTexts) {
			errs = append(errs, fmt.Sprintf("rule %d citation_text is not a literal quote from a retrieved chunk: %q", i+1, truncate(rule.CitationText, 80)))
		}
		if rule.SourcePolicyTitle != "" && !titles[rule.SourcePolicyTitle] {
			errs = append(errs, fmt.Sprintf("rule %d cites unknown policy title %q", i+1, rule.SourcePolicyTitle))
		}
	}
	return errs
}

// mergeVerification folds deterministic findings into the model's
// verdict. Deterministic errors always flag the draft.
func mergeVerification(modelVerdict *Verification, deterministicErrs []string) *Verification {
	merged := &Verification{}
	if modelVerdict != nil {
		*merged = *modelVerdict
	}
	if len(deterministicErrs) > 0 {
		merged.IsHallucination = true
		merged.Errors = append(deterministicErrs, merged.Errors...)
		if merged.ImprovementNotes == "" {
			merged.ImprovementNotes = "Quote citation_text verbatim from the context and use only the policy titles shown in the context headers."
		}
	}
	return merged
}

// normalizedChunkTexts pre-normalizes each chunk's text for quote
// containment checks. Chunks stay separate: a quote spliced across two
// adjacent chunks is a fabrication, not a literal citation.
func normalizedChunkTexts(chunks []model.ScoredChunk) []string {
	texts := make([]string, len(chunks))
	for i, sc := range chunks {
		texts[i] = normalizeSpace(sc.Chunk.Text)
	}
	return texts
}

func quotedInAnyChunk(normalizedCitation string, normalizedTexts []string) bool {
	for _, text := range normalizedTexts {
		if strings.Contains(text, normalizedCitation) {
			return true
		}
	}
	return false
}

// normalizeSpace collapses runs of whitespace so a quote is not
// rejected over line wrapping differences.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
