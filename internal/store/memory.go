package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/apca/claimaudit/internal/model"
)

// MemoryStore is the in-process backend.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]model.PolicyMetadata
	claims   map[string]model.Claim
	audits   map[string]model.AuditOutput
	feedback map[string][]model.AuditorFeedback // auditID -> feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]model.PolicyMetadata),
		claims:   make(map[string]model.Claim),
		audits:   make(map[string]model.AuditOutput),
		feedback: make(map[string][]model.AuditorFeedback),
	}
}

func (s *MemoryStore) SavePolicy(ctx context.Context, meta model.PolicyMetadata) error {
	if meta.PolicyID == "" {
		return fmt.Errorf("policy without ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[meta.PolicyID] = meta
	return nil
}

func (s *MemoryStore) GetPolicy(ctx context.Context, policyID string) (model.PolicyMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.policies[policyID]
	if !ok {
		return model.PolicyMetadata{}, fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	return meta, nil
}

func (s *MemoryStore) ListPolicies(ctx context.Context) ([]model.PolicyMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PolicyMetadata, 0, len(s.policies))
	for _, meta := range s.policies {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeletePolicy(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[policyID]; !ok {
		return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	delete(s.policies, policyID)
	return nil
}

func (s *MemoryStore) SaveClaim(ctx context.Context, claim model.Claim) error {
	if claim.ClaimID == "" {
		return fmt.Errorf("claim without ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ClaimID] = claim
	return nil
}

func (s *MemoryStore) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return model.Claim{}, fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	return claim, nil
}

func (s *MemoryStore) ListClaims(ctx context.Context) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID < out[j].ClaimID })
	return out, nil
}

func (s *MemoryStore) SaveAudit(ctx context.Context, audit model.AuditOutput) error {
	if audit.AuditID == "" {
		return fmt.Errorf("audit without ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[audit.AuditID] = audit
	return nil
}

func (s *MemoryStore) GetAudit(ctx context.Context, auditID string) (model.AuditOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audit, ok := s.audits[auditID]
	if !ok {
		return model.AuditOutput{}, fmt.Errorf("audit %s: %w", auditID, ErrNotFound)
	}
	return audit, nil
}

func (s *MemoryStore) ListAuditsForClaim(ctx context.Context, claimID string) ([]model.AuditOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AuditOutput
	for _, audit := range s.audits {
		if audit.ClaimID == claimID {
			out = append(out, audit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveFeedback(ctx context.Context, fb model.AuditorFeedback) error {
	if fb.AuditID == "" {
		return fmt.Errorf("feedback without audit ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[fb.AuditID]; !ok {
		return fmt.Errorf("audit %s: %w", fb.AuditID, ErrNotFound)
	}
	s.feedback[fb.AuditID] = append(s.feedback[fb.AuditID], fb)
	return nil
}

func (s *MemoryStore) ListFeedbackForAudit(ctx context.Context, auditID string) ([]model.AuditorFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditorFeedback(nil), s.feedback[auditID]...), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
