package audit

import (
	"fmt"
	"strings"

	"github.com/apca/claimaudit/internal/model"
)

// PromptVersion is stamped on every audit produced by the live
// pipeline. Bump it whenever a prompt below changes.
const PromptVersion = "v2.1"

const auditorSystem = "You are the Lead Auditor for APCA ClaimAudit. You audit medical claims strictly against the policy context you are given. You never use external medical knowledge and you respond only with JSON."

const auditorPromptTemplate = `Audit this medical claim against the provided policy context.

CLAIM DETAILS:
- ID: %s
- Payer: %s
- Codes: %s / %s
- Billed: $%.2f

POLICY CONTEXT:
%s

INSTRUCTIONS:
1. Review the claim against the policies.
2. Identify specific rules. For each rule, you MUST provide an EXACT citation from the context.
3. Use the source policy title exactly as provided in the context headers.
4. If a rule is not explicitly covered, mark the decision as PEND_INFO or NEEDS_HUMAN.
5. Do NOT use external medical knowledge.

%s`

const verifierSystem = "You are the Audit Integrity Officer. Your job is to catch hallucinations in audit drafts. You respond only with JSON."

const verifierPromptTemplate = `Compare the audit draft against the original context.

AUDIT DRAFT:
%s

ORIGINAL CONTEXT:
%s

VERIFICATION CRITERIA:
1. Every citation_text must exist LITERALLY in the context.
2. The source_policy_title must match a policy title provided in the context headers.
3. No external rules or medical criteria may be introduced that are not in the context.
4. The decision must be logically sound based ONLY on the cited text.

%s`

const refinerPromptTemplate = `The Audit Integrity Officer found errors in your previous draft. Fix them.

PREVIOUS DRAFT:
%s

ERRORS FOUND:
%s

IMPROVEMENT NOTES:
%s

ORIGINAL CONTEXT:
%s

Provide a corrected audit draft.

%s`

const draftFormatInstructions = `Respond with a JSON object of this exact shape:
{
  "decision": "APPROVE | DENY | PEND_INFO | NEEDS_HUMAN",
  "confidence": 0.0,
  "explanation": "overall audit summary",
  "rules": [
    {
      "rule_text": "the specific policy rule",
      "satisfied": true,
      "explanation": "why the rule is satisfied or not",
      "citation_text": "EXACT quote from the policy text",
      "source_policy_title": "EXACT title of the policy this rule comes from"
    }
  ],
  "missing_info": ["any missing data required for a definitive decision"]
}`

const verifyFormatInstructions = `Respond with a JSON object of this exact shape:
{
  "is_hallucination": false,
  "errors": ["each hallucinated claim or invalid citation"],
  "improvement_notes": "instructions on how to fix the audit"
}`

// FormatContext renders retrieved chunks with explicit source headers
// so the model can attribute every citation to a policy title.
func FormatContext(chunks []model.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, sc := range chunks {
		title := sc.Chunk.PolicyName
		if title == "" {
			title = "General Policy"
		}
		section := sc.Chunk.SectionPath
		if section == "" {
			section = model.SectionFallback
		}
		parts[i] = fmt.Sprintf("--- POLICY: %s | SECTION: %s ---\n%s", title, section, sc.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func auditorPrompt(claim model.Claim, context string) string {
	return fmt.Sprintf(auditorPromptTemplate,
		claim.ClaimID,
		claim.Payer,
		strings.Join(claim.CPTCodes, ", "),
		strings.Join(claim.ICDCodes, ", "),
		claim.BilledAmount,
		context,
		draftFormatInstructions,
	)
}

func verifierPrompt(draftJSON, context string) string {
	return fmt.Sprintf(verifierPromptTemplate, draftJSON, context, verifyFormatInstructions)
}

func refinerPrompt(draftJSON string, verification Verification, context string) string {
	return fmt.Sprintf(refinerPromptTemplate,
		draftJSON,
		strings.Join(verification.Errors, "\n"),
		verification.ImprovementNotes,
		context,
		draftFormatInstructions,
	)
}
