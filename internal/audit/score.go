package audit

import (
	"fmt"
	"strings"

	"github.com/apca/claimaudit/internal/model"
)

// Scorer computes the final confidence for an audit from a fixed
// rubric. The draft's self-estimate is ignored: confidence is a
// function of what the pipeline can measure, not what the model
// believes about itself.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// ScoreResult carries the computed confidence and its reasoning.
type ScoreResult struct {
	Confidence float64
	Reasoning  string
}

// Score applies the rubric:
//   - citation strength (0-0.5): share of rules whose citation is a
//     literal quote from the retrieved context
//   - verification consistency (0-0.3): full credit for a clean first
//     verification, partial when refinement was needed, none when the
//     final verdict still flags hallucinations
//   - rule coverage (0-0.2): the draft applied at least one rule
//
// Caps: missing info or a non-definitive decision caps the score at
// 0.7; a draft that is still flagged after refinement caps at 0.4.
func (s *Scorer) Score(draft *Draft, verification *Verification, chunks []model.ScoredChunk, refined bool) ScoreResult {
	var reasons []string

	literal := 0
	chunkTexts := normalizedChunkTexts(chunks)
	for _, rule := range draft.Rules {
		citation := normalizeSpace(rule.CitationText)
		if citation != "" && quotedInAnyChunk(citation, chunkTexts) {
			literal++
		}
	}

	citationScore := 0.0
	if len(draft.Rules) > 0 {
		ratio := float64(literal) / float64(len(draft.Rules))
		citationScore = 0.5 * ratio
		reasons = append(reasons, fmt.Sprintf("%d of %d rules carry literal citations (%.2f)", literal, len(draft.Rules), citationScore))
	} else {
		reasons = append(reasons, "no rules applied (0.00)")
	}

	verificationScore := 0.0
	switch {
	case verification != nil && verification.IsHallucination:
		reasons = append(reasons, "final verification still flags hallucinations (0.00)")
	case refined:
		verificationScore = 0.15
		reasons = append(reasons, "verification passed after refinement (0.15)")
	default:
		verificationScore = 0.3
		reasons = append(reasons, "verification passed on first draft (0.30)")
	}

	coverageScore := 0.0
	if len(draft.Rules) > 0 {
		coverageScore = 0.2
		reasons = append(reasons, "at least one rule applied (0.20)")
	}

	confidence := citationScore + verificationScore + coverageScore

	decision := model.ParseDecision(draft.Decision)
	if len(draft.MissingInfo) > 0 && confidence > 0.7 {
		confidence = 0.7
		reasons = append(reasons, "capped at 0.70: missing info present")
	}
	if !decision.Binding() && confidence > 0.7 {
		confidence = 0.7
		reasons = append(reasons, fmt.Sprintf("capped at 0.70: decision %s is not definitive", decision))
	}
	if verification != nil && verification.IsHallucination && confidence > 0.4 {
		confidence = 0.4
		reasons = append(reasons, "capped at 0.40: unresolved verification errors")
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ScoreResult{
		Confidence: confidence,
		Reasoning:  strings.Join(reasons, "; "),
	}
}
