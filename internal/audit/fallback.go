package audit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/apca/claimaudit/internal/model"
)

// FallbackPromptVersion marks outputs produced by the degraded path so
// they can never be mistaken for a real audit.
const FallbackPromptVersion = "v1.0-mock-fallback"

const fallbackNotice = "[MOCK DATA] External LLM service rate limit exceeded. This is simulated data for demonstration purposes only."

// mockFallback produces a clearly-labeled placeholder audit when the
// upstream LLM is rate limited or unavailable. The decision is always
// PEND_INFO with zero confidence; every synthetic field carries a
// [MOCK] label.
func mockFallback(claim model.Claim) model.AuditOutput {
	citation := model.Citation{
		PolicyID:    "MOCK-FALLBACK-001",
		PolicyName:  fmt.Sprintf("[MOCK] %s Coverage Policy", claim.Payer),
		Page:        1,
		SectionPath: "Mock Section > Fallback Data",
		ChunkID:     "mock-" + uuid.NewString()[:8],
		TextExcerpt: "[MOCK CITATION] This is simulated policy text returned due to external service unavailability.",
		StartChar:   0,
		EndChar:     100,
	}

	rule := model.RuleApplied{
		RuleID:      uuid.NewString(),
		RuleText:    "[MOCK] CPT code validation",
		Satisfied:   true,
		Citation:    citation,
		Explanation: fmt.Sprintf("[MOCK] CPT codes %s simulated validation.", strings.Join(claim.CPTCodes, ", ")),
	}

	explanation := fmt.Sprintf(
		"%s\n\nClaim %s for patient %s. This audit result is SIMULATED and must not be used for actual claim adjudication. Try again later when external services are available.",
		fallbackNotice, claim.ClaimID, claim.PatientID)

	return model.NewAuditOutput(
		claim.ClaimID,
		model.DecisionPendInfo,
		0,
		[]model.RuleApplied{rule},
		[]model.Citation{citation},
		explanation,
		[]string{"Real audit pending: external service unavailable"},
		FallbackPromptVersion,
	)
}
