package audit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/model"
)

// finalize maps a scored draft onto the output schema, resolving each
// rule's cited policy title back to a retrieved chunk so citations
// carry real chunk ids. A title that matches no retrieved chunk falls
// back to the best-ranked chunk's metadata and is recorded in
// missing_info rather than silently attributed.
func finalize(claim model.Claim, draft *Draft, chunks []model.ScoredChunk, score ScoreResult, promptVersion string, logger *zap.Logger) model.AuditOutput {
	var citations []model.Citation
	var rules []model.RuleApplied
	missingInfo := append([]string(nil), draft.MissingInfo...)

	for _, rule := range draft.Rules {
		matched := matchChunk(chunks, rule.SourcePolicyTitle)
		if matched == nil && len(chunks) > 0 {
			// An empty title is an omission, not a misattribution;
			// only a named title that matches nothing gets flagged.
			if rule.SourcePolicyTitle != "" {
				logger.Warn("cited policy title not among retrieved sources",
					zap.String("claim_id", claim.ClaimID),
					zap.String("cited_title", rule.SourcePolicyTitle))
				missingInfo = append(missingInfo, fmt.Sprintf(
					"cited policy title %q did not match any retrieved source; citation metadata taken from the best-ranked chunk", rule.SourcePolicyTitle))
			}
			matched = &chunks[0].Chunk
		}

		cit := buildCitation(rule, matched)
		citations = append(citations, cit)
		rules = append(rules, model.RuleApplied{
			RuleID:      uuid.NewString(),
			RuleText:    rule.RuleText,
			Satisfied:   rule.Satisfied,
			Citation:    cit,
			Explanation: rule.Explanation,
		})
	}

	explanation := draft.Explanation
	if score.Reasoning != "" {
		explanation = fmt.Sprintf("%s\n\nConfidence reasoning: %s", draft.Explanation, score.Reasoning)
	}

	return model.NewAuditOutput(
		claim.ClaimID,
		model.ParseDecision(draft.Decision),
		score.Confidence,
		rules,
		citations,
		explanation,
		missingInfo,
		promptVersion,
	)
}

func matchChunk(chunks []model.ScoredChunk, title string) *model.PolicyChunk {
	if title == "" {
		return nil
	}
	for i := range chunks {
		if chunks[i].Chunk.PolicyName == title {
			return &chunks[i].Chunk
		}
	}
	return nil
}

func buildCitation(rule DraftRule, chunk *model.PolicyChunk) model.Citation {
	cit := model.Citation{
		PolicyName:  rule.SourcePolicyTitle,
		TextExcerpt: rule.CitationText,
		PolicyID:    "unknown",
		Page:        1,
		SectionPath: model.SectionFallback,
	}
	if cit.PolicyName == "" {
		cit.PolicyName = "Unspecified Policy"
	}
	if chunk == nil {
		return cit
	}

	cit.PolicyID = chunk.PolicyID
	cit.ChunkID = chunk.ChunkID
	if chunk.Page > 0 {
		cit.Page = chunk.Page
	}
	if chunk.SectionPath != "" {
		cit.SectionPath = chunk.SectionPath
	}
	if start, end, ok := excerptSpan(chunk.Text, rule.CitationText); ok {
		cit.StartChar = start
		cit.EndChar = end
	}
	return cit
}

// excerptSpan locates quote within text and returns raw byte offsets.
// Whitespace runs on either side are treated as equivalent, matching
// the tolerance of the verification stage, so a quote that passed
// verification with different line wrapping still gets a span.
func excerptSpan(text, quote string) (int, int, bool) {
	if idx := strings.Index(text, quote); idx >= 0 {
		return idx, idx + len(quote), true
	}

	fields := strings.Fields(quote)
	if len(fields) == 0 {
		return 0, 0, false
	}
	for offset := 0; ; {
		idx := strings.Index(text[offset:], fields[0])
		if idx < 0 {
			return 0, 0, false
		}
		start := offset + idx
		if end, ok := matchFieldsAt(text, start, fields); ok {
			return start, end, true
		}
		offset = start + 1
	}
}

// matchFieldsAt matches fields in order starting at pos, requiring at
// least one whitespace byte between consecutive fields.
func matchFieldsAt(text string, pos int, fields []string) (int, bool) {
	j := pos
	for i, f := range fields {
		if i > 0 {
			k := j
			for k < len(text) && isSpaceByte(text[k]) {
				k++
			}
			if k == j {
				return 0, false
			}
			j = k
		}
		if !strings.HasPrefix(text[j:], f) {
			return 0, false
		}
		j += len(f)
	}
	return j, true
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
