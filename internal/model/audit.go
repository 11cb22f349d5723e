package model

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the terminal outcome of an audit
type Decision string

const (
	DecisionApprove    Decision = "APPROVE"
	DecisionDeny       Decision = "DENY"
	DecisionPendInfo   Decision = "PEND_INFO"
	DecisionNeedsHuman Decision = "NEEDS_HUMAN"
)

// ParseDecision maps free-form model output onto a known decision.
// Anything unrecognized pends for more information rather than guessing.
func ParseDecision(s string) Decision {
	switch Decision(s) {
	case DecisionApprove, DecisionDeny, DecisionPendInfo, DecisionNeedsHuman:
		return Decision(s)
	default:
		return DecisionPendInfo
	}
}

// Binding reports whether the decision commits the payer to an outcome.
// Binding decisions require citation evidence.
func (d Decision) Binding() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// Citation links an applied rule back to literal source policy text.
// TextExcerpt must be a literal substring of a retrieved chunk; the
// verification stage enforces this, the type does not.
type Citation struct {
	PolicyID    string `json:"policy_id"`
	PolicyName  string `json:"policy_name,omitempty"`
	Page        int    `json:"page"`
	SectionPath string `json:"section_path"`
	ChunkID     string `json:"chunk_id"`
	TextExcerpt string `json:"text_excerpt"`
	StartChar   int    `json:"start_char,omitempty"`
	EndChar     int    `json:"end_char,omitempty"`
}

// RuleApplied is one policy rule evaluated during the audit
type RuleApplied struct {
	RuleID      string   `json:"rule_id"`
	RuleText    string   `json:"rule_text"`
	Satisfied   bool     `json:"satisfied"`
	Citation    Citation `json:"citation"`
	Explanation string   `json:"explanation,omitempty"`
}

// AuditOutput is the externally visible audit result.
//
// Invariant: a binding decision (APPROVE/DENY) is invalid without at least
// one citation. NewAuditOutput is the only constructor and coerces such
// decisions to PEND_INFO, so no caller can emit an unbacked binding decision.
type AuditOutput struct {
	AuditID       string        `json:"audit_id"`
	ClaimID       string        `json:"claim_id"`
	Decision      Decision      `json:"decision"`
	Confidence    float64       `json:"confidence"`
	RulesApplied  []RuleApplied `json:"rules_applied"`
	Citations     []Citation    `json:"citations"`
	Explanation   string        `json:"explanation"`
	MissingInfo   []string      `json:"missing_info"`
	PromptVersion string        `json:"prompt_version"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewAuditOutput builds a schema-valid audit result, enforcing the
// decision/citations invariant as the last step before the value exists.
func NewAuditOutput(claimID string, decision Decision, confidence float64, rules []RuleApplied, citations []Citation, explanation string, missingInfo []string, promptVersion string) AuditOutput {
	if decision.Binding() && len(citations) == 0 {
		decision = DecisionPendInfo
		missingInfo = append(missingInfo, "decision downgraded: no supporting citations were available")
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if rules == nil {
		rules = []RuleApplied{}
	}
	if citations == nil {
		citations = []Citation{}
	}
	if missingInfo == nil {
		missingInfo = []string{}
	}
	return AuditOutput{
		AuditID:       uuid.NewString(),
		ClaimID:       claimID,
		Decision:      decision,
		Confidence:    confidence,
		RulesApplied:  rules,
		Citations:     citations,
		Explanation:   explanation,
		MissingInfo:   missingInfo,
		PromptVersion: promptVersion,
		CreatedAt:     time.Now().UTC(),
	}
}
