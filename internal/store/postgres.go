package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apca/claimaudit/internal/model"
)

// PostgresStore is the database backend. Policies, claims and feedback
// use plain columns; audit outputs are stored as jsonb since their
// nested rules and citations are read back whole, never queried into.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS policies (
			policy_id      TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			payer          TEXT NOT NULL DEFAULT '',
			effective_date TIMESTAMPTZ,
			status         TEXT NOT NULL DEFAULT 'active',
			chunk_count    INT NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			claim_id      TEXT PRIMARY KEY,
			patient_id    TEXT NOT NULL DEFAULT '',
			cpt_codes     TEXT[] NOT NULL,
			icd_codes     TEXT[] NOT NULL DEFAULT '{}',
			service_date  TIMESTAMPTZ,
			payer         TEXT NOT NULL DEFAULT '',
			provider_npi  TEXT NOT NULL DEFAULT '',
			billed_amount DOUBLE PRECISION NOT NULL,
			policy_id     TEXT NOT NULL DEFAULT '',
			notes         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS audits (
			audit_id   TEXT PRIMARY KEY,
			claim_id   TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS audits_claim_idx ON audits (claim_id)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			feedback_id TEXT PRIMARY KEY,
			audit_id    TEXT NOT NULL REFERENCES audits (audit_id),
			is_correct  BOOLEAN NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			comment     TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SavePolicy(ctx context.Context, meta model.PolicyMetadata) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO policies (policy_id, name, payer, effective_date, status, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (policy_id) DO UPDATE SET
			name = EXCLUDED.name,
			payer = EXCLUDED.payer,
			effective_date = EXCLUDED.effective_date,
			status = EXCLUDED.status,
			chunk_count = EXCLUDED.chunk_count`,
		meta.PolicyID, meta.Name, meta.Payer, meta.EffectiveDate, meta.Status, meta.ChunkCount, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", meta.PolicyID, err)
	}
	return nil
}

func (s *PostgresStore) GetPolicy(ctx context.Context, policyID string) (model.PolicyMetadata, error) {
	var meta model.PolicyMetadata
	err := s.db.QueryRow(ctx, `
		SELECT policy_id, name, payer, effective_date, status, chunk_count, created_at
		FROM policies WHERE policy_id = $1`, policyID).
		Scan(&meta.PolicyID, &meta.Name, &meta.Payer, &meta.EffectiveDate, &meta.Status, &meta.ChunkCount, &meta.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PolicyMetadata{}, fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	if err != nil {
		return model.PolicyMetadata{}, fmt.Errorf("failed to get policy %s: %w", policyID, err)
	}
	return meta, nil
}

func (s *PostgresStore) ListPolicies(ctx context.Context) ([]model.PolicyMetadata, error) {
	rows, err := s.db.Query(ctx, `
		SELECT policy_id, name, payer, effective_date, status, chunk_count, created_at
		FROM policies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var out []model.PolicyMetadata
	for rows.Next() {
		var meta model.PolicyMetadata
		if err := rows.Scan(&meta.PolicyID, &meta.Name, &meta.Payer, &meta.EffectiveDate, &meta.Status, &meta.ChunkCount, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeletePolicy(ctx context.Context, policyID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM policies WHERE policy_id = $1`, policyID)
	if err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", policyID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SaveClaim(ctx context.Context, claim model.Claim) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO claims (claim_id, patient_id, cpt_codes, icd_codes, service_date, payer, provider_npi, billed_amount, policy_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (claim_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			cpt_codes = EXCLUDED.cpt_codes,
			icd_codes = EXCLUDED.icd_codes,
			service_date = EXCLUDED.service_date,
			payer = EXCLUDED.payer,
			provider_npi = EXCLUDED.provider_npi,
			billed_amount = EXCLUDED.billed_amount,
			policy_id = EXCLUDED.policy_id,
			notes = EXCLUDED.notes`,
		claim.ClaimID, claim.PatientID, claim.CPTCodes, claim.ICDCodes, claim.ServiceDate,
		claim.Payer, claim.ProviderNPI, claim.BilledAmount, claim.PolicyID, claim.Notes)
	if err != nil {
		return fmt.Errorf("failed to save claim %s: %w", claim.ClaimID, err)
	}
	return nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	var claim model.Claim
	err := s.db.QueryRow(ctx, `
		SELECT claim_id, patient_id, cpt_codes, icd_codes, service_date, payer, provider_npi, billed_amount, policy_id, notes
		FROM claims WHERE claim_id = $1`, claimID).
		Scan(&claim.ClaimID, &claim.PatientID, &claim.CPTCodes, &claim.ICDCodes, &claim.ServiceDate,
			&claim.Payer, &claim.ProviderNPI, &claim.BilledAmount, &claim.PolicyID, &claim.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Claim{}, fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	if err != nil {
		return model.Claim{}, fmt.Errorf("failed to get claim %s: %w", claimID, err)
	}
	return claim, nil
}

func (s *PostgresStore) ListClaims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.db.Query(ctx, `
		SELECT claim_id, patient_id, cpt_codes, icd_codes, service_date, payer, provider_npi, billed_amount, policy_id, notes
		FROM claims ORDER BY claim_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		var claim model.Claim
		if err := rows.Scan(&claim.ClaimID, &claim.PatientID, &claim.CPTCodes, &claim.ICDCodes, &claim.ServiceDate,
			&claim.Payer, &claim.ProviderNPI, &claim.BilledAmount, &claim.PolicyID, &claim.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveAudit(ctx context.Context, audit model.AuditOutput) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("failed to encode audit %s: %w", audit.AuditID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO audits (audit_id, claim_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (audit_id) DO NOTHING`,
		audit.AuditID, audit.ClaimID, payload, audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save audit %s: %w", audit.AuditID, err)
	}
	return nil
}

func (s *PostgresStore) GetAudit(ctx context.Context, auditID string) (model.AuditOutput, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM audits WHERE audit_id = $1`, auditID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AuditOutput{}, fmt.Errorf("audit %s: %w", auditID, ErrNotFound)
	}
	if err != nil {
		return model.AuditOutput{}, fmt.Errorf("failed to get audit %s: %w", auditID, err)
	}
	var audit model.AuditOutput
	if err := json.Unmarshal(payload, &audit); err != nil {
		return model.AuditOutput{}, fmt.Errorf("failed to decode audit %s: %w", auditID, err)
	}
	return audit, nil
}

func (s *PostgresStore) ListAuditsForClaim(ctx context.Context, claimID string) ([]model.AuditOutput, error) {
	rows, err := s.db.Query(ctx, `
		SELECT payload FROM audits WHERE claim_id = $1 ORDER BY created_at DESC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	var out []model.AuditOutput
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		var audit model.AuditOutput
		if err := json.Unmarshal(payload, &audit); err != nil {
			return nil, fmt.Errorf("failed to decode audit: %w", err)
		}
		out = append(out, audit)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, fb model.AuditorFeedback) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO feedback (feedback_id, audit_id, is_correct, reason, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.FeedbackID, fb.AuditID, fb.IsCorrect, string(fb.Reason), fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback %s: %w", fb.FeedbackID, err)
	}
	return nil
}

func (s *PostgresStore) ListFeedbackForAudit(ctx context.Context, auditID string) ([]model.AuditorFeedback, error) {
	rows, err := s.db.Query(ctx, `
		SELECT feedback_id, audit_id, is_correct, reason, comment, created_at
		FROM feedback WHERE audit_id = $1 ORDER BY created_at`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []model.AuditorFeedback
	for rows.Next() {
		var fb model.AuditorFeedback
		var reason string
		if err := rows.Scan(&fb.FeedbackID, &fb.AuditID, &fb.IsCorrect, &reason, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.Reason = model.FeedbackReason(reason)
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
