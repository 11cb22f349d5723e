package model

import "time"

// SectionFallback is the section path assigned to chunks when no structural
// heading was detected in the source document.
const SectionFallback = "General"

// PolicyChunk is a citation-addressable unit of policy text.
// Chunks are immutable once stored and belong to exactly one policy.
type PolicyChunk struct {
	ChunkID     string    `json:"chunk_id"`    // Deterministic, unique within a policy
	Text        string    `json:"text"`
	PolicyID    string    `json:"policy_id"`
	PolicyName  string    `json:"policy_name"`
	Payer       string    `json:"payer,omitempty"`
	SectionPath string    `json:"section_path"` // "Policy > Section > Subsection"
	Page        int       `json:"page"`         // 1-indexed, best effort
	Embedding   []float32 `json:"embedding,omitempty"`
}

// ScoredChunk pairs a chunk with its similarity score from a search
type ScoredChunk struct {
	Chunk PolicyChunk `json:"chunk"`
	Score float64     `json:"score"` // Cosine similarity, higher is closer
}

// PolicyMetadata describes an ingested policy document
type PolicyMetadata struct {
	PolicyID      string    `json:"policy_id"`
	Name          string    `json:"name"`
	Payer         string    `json:"payer"`
	EffectiveDate time.Time `json:"effective_date"`
	Status        string    `json:"status"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeedbackReason categorizes why a human auditor disagreed with an audit
type FeedbackReason string

const (
	FeedbackWrongPolicy     FeedbackReason = "wrong_policy"
	FeedbackMissingEvidence FeedbackReason = "missing_evidence"
	FeedbackWrongRuleParse  FeedbackReason = "wrong_rule_parse"
	FeedbackMissingFields   FeedbackReason = "claim_missing_fields"
	FeedbackOther           FeedbackReason = "other"
)

// AuditorFeedback records a human reviewer's verdict on an audit output
type AuditorFeedback struct {
	FeedbackID string         `json:"feedback_id"`
	AuditID    string         `json:"audit_id"`
	IsCorrect  bool           `json:"is_correct"`
	Reason     FeedbackReason `json:"reason,omitempty"`
	Comment    string         `json:"comment,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
