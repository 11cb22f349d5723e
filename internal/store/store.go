// Package store persists policies, claims, audits and auditor
// feedback. Interfaces are injected so handlers and services never
// depend on a concrete backend; the memory implementation backs tests
// and single-node deployments, the Postgres implementation backs
// everything else.
package store

import (
	"context"
	"errors"

	"github.com/apca/claimaudit/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// PolicyStore tracks ingested policy documents.
type PolicyStore interface {
	SavePolicy(ctx context.Context, meta model.PolicyMetadata) error
	GetPolicy(ctx context.Context, policyID string) (model.PolicyMetadata, error)
	ListPolicies(ctx context.Context) ([]model.PolicyMetadata, error)
	DeletePolicy(ctx context.Context, policyID string) error
}

// ClaimStore tracks submitted claims.
type ClaimStore interface {
	SaveClaim(ctx context.Context, claim model.Claim) error
	GetClaim(ctx context.Context, claimID string) (model.Claim, error)
	ListClaims(ctx context.Context) ([]model.Claim, error)
}

// AuditStore tracks completed audit outputs.
type AuditStore interface {
	SaveAudit(ctx context.Context, audit model.AuditOutput) error
	GetAudit(ctx context.Context, auditID string) (model.AuditOutput, error)
	ListAuditsForClaim(ctx context.Context, claimID string) ([]model.AuditOutput, error)
}

// FeedbackStore tracks human reviewer verdicts on audits.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb model.AuditorFeedback) error
	ListFeedbackForAudit(ctx context.Context, auditID string) ([]model.AuditorFeedback, error)
}

// Store bundles the four concerns behind one handle.
type Store interface {
	PolicyStore
	ClaimStore
	AuditStore
	FeedbackStore
	Close() error
}
