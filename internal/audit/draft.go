package audit

import (
	"encoding/json"
	"fmt"

	"github.com/apca/claimaudit/internal/llm"
)

// Draft is the auditor model's working output before finalization.
type Draft struct {
	Decision    string      `json:"decision"`
	Confidence  float64     `json:"confidence"`
	Explanation string      `json:"explanation"`
	Rules       []DraftRule `json:"rules"`
	MissingInfo []string    `json:"missing_info"`
}

// DraftRule is one rule application inside a draft. The citation text
// must be a literal quote from the retrieved context and the source
// title must name one of the retrieved policies; the verifier checks
// both.
type DraftRule struct {
	RuleText          string `json:"rule_text"`
	Satisfied         bool   `json:"satisfied"`
	Explanation       string `json:"explanation"`
	CitationText      string `json:"citation_text"`
	SourcePolicyTitle string `json:"source_policy_title"`
}

// Verification is the integrity check result for a draft.
type Verification struct {
	IsHallucination  bool     `json:"is_hallucination"`
	Errors           []string `json:"errors"`
	ImprovementNotes string   `json:"improvement_notes"`
}

func parseDraft(text string) (*Draft, error) {
	raw, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("draft response: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	return &draft, nil
}

func parseVerification(text string) (*Verification, error) {
	raw, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("verification response: %w", err)
	}
	var v Verification
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to parse verification: %w", err)
	}
	return &v, nil
}

func (d *Draft) json() string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
