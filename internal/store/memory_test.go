package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apca/claimaudit/internal/model"
)

func TestMemoryStore_PolicyLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meta := model.PolicyMetadata{
		PolicyID:   "pol-1",
		Name:       "Knee Policy",
		Payer:      "acme",
		Status:     "active",
		ChunkCount: 12,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.SavePolicy(ctx, meta); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := s.GetPolicy(ctx, "pol-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Name != "Knee Policy" || got.ChunkCount != 12 {
		t.Errorf("Unexpected policy: %+v", got)
	}

	list, err := s.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 policy, got %d", len(list))
	}

	if err := s.DeletePolicy(ctx, "pol-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := s.GetPolicy(ctx, "pol-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeletePolicy(ctx, "pol-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemoryStore_AuditsByClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := model.NewAuditOutput("clm-1", model.DecisionPendInfo, 0.4, nil, nil, "first", nil, "v2.1")
	second := model.NewAuditOutput("clm-1", model.DecisionPendInfo, 0.6, nil, nil, "second", nil, "v2.1")
	other := model.NewAuditOutput("clm-2", model.DecisionPendInfo, 0.5, nil, nil, "other", nil, "v2.1")

	for _, a := range []model.AuditOutput{first, second, other} {
		if err := s.SaveAudit(ctx, a); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	audits, err := s.ListAuditsForClaim(ctx, "clm-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(audits) != 2 {
		t.Errorf("Expected 2 audits for clm-1, got %d", len(audits))
	}

	got, err := s.GetAudit(ctx, first.AuditID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Explanation != "first" {
		t.Errorf("Unexpected audit: %+v", got)
	}
}

func TestMemoryStore_FeedbackRequiresAudit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fb := model.AuditorFeedback{
		FeedbackID: "fb-1",
		AuditID:    "aud-missing",
		IsCorrect:  false,
		Reason:     model.FeedbackMissingEvidence,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.SaveFeedback(ctx, fb); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown audit, got %v", err)
	}

	audit := model.NewAuditOutput("clm-1", model.DecisionPendInfo, 0.5, nil, nil, "x", nil, "v2.1")
	if err := s.SaveAudit(ctx, audit); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	fb.AuditID = audit.AuditID
	if err := s.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	list, err := s.ListFeedbackForAudit(ctx, audit.AuditID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(list) != 1 || list[0].Reason != model.FeedbackMissingEvidence {
		t.Errorf("Unexpected feedback list: %+v", list)
	}
}

func TestMemoryStore_ClaimRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	claim := model.Claim{
		ClaimID:      "clm-1",
		PatientID:    "pat-1",
		CPTCodes:     []string{"29881"},
		ICDCodes:     []string{"M23.205"},
		Payer:        "acme",
		BilledAmount: 1200,
	}
	if err := s.SaveClaim(ctx, claim); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := s.GetClaim(ctx, "clm-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Payer != "acme" || got.BilledAmount != 1200 {
		t.Errorf("Unexpected claim: %+v", got)
	}

	if _, err := s.GetClaim(ctx, "clm-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
