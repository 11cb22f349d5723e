package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/llm"
	"github.com/apca/claimaudit/internal/model"
)

// DefaultMaxDraftAttempts bounds the draft/refine loop. The first
// draft counts as attempt one, so the default allows one refinement.
const DefaultMaxDraftAttempts = 2

// EvidenceSource supplies the chunks an audit runs against.
type EvidenceSource interface {
	Retrieve(ctx context.Context, claim model.Claim) ([]model.ScoredChunk, error)
}

// Machine drives one claim through the audit workflow. Each node's
// outcome is an Event fed to the pure Transition function, so the
// legal control flow lives in one table and the machine cannot wander
// off it.
type Machine struct {
	source        EvidenceSource
	provider      llm.Provider
	scorer        *Scorer
	maxAttempts   int
	promptVersion string
	logger        *zap.Logger
}

func NewMachine(source EvidenceSource, provider llm.Provider, maxAttempts int, promptVersion string, logger *zap.Logger) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDraftAttempts
	}
	if promptVersion == "" {
		promptVersion = PromptVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		source:        source,
		provider:      provider,
		scorer:        NewScorer(),
		maxAttempts:   maxAttempts,
		promptVersion: promptVersion,
		logger:        logger,
	}
}

// Run audits one claim. It returns an error on missing evidence,
// provider failure or a malformed model response; the caller decides
// whether the error warrants a degraded fallback output.
func (m *Machine) Run(ctx context.Context, claim model.Claim) (model.AuditOutput, error) {
	state := StateRetrieve
	logger := m.logger.With(zap.String("claim_id", claim.ClaimID))

	chunks, err := m.source.Retrieve(ctx, claim)
	if err != nil {
		m.step(logger, &state, EventNoEvidence)
		return model.AuditOutput{}, fmt.Errorf("retrieve: %w", err)
	}
	if err := m.step(logger, &state, EventEvidenceFound); err != nil {
		return model.AuditOutput{}, err
	}

	contextStr := FormatContext(chunks)
	attempts := 0
	refined := false

	draft, err := m.draft(ctx, claim, contextStr)
	if err != nil {
		m.step(logger, &state, EventError)
		return model.AuditOutput{}, err
	}
	attempts++
	if err := m.step(logger, &state, EventDrafted); err != nil {
		return model.AuditOutput{}, err
	}

	var verification *Verification
	for state == StateVerify {
		verification, err = m.verify(ctx, draft, chunks, contextStr)
		if err != nil {
			m.step(logger, &state, EventError)
			return model.AuditOutput{}, err
		}

		event := EventVerifiedClean
		if verification.IsHallucination {
			if attempts >= m.maxAttempts {
				logger.Warn("draft budget exhausted with unresolved errors",
					zap.Int("attempts", attempts),
					zap.Strings("errors", verification.Errors))
				event = EventBudgetExhausted
			} else {
				event = EventHallucination
			}
		}
		if err := m.step(logger, &state, event); err != nil {
			return model.AuditOutput{}, err
		}

		if state == StateRefine {
			draft, err = m.refine(ctx, draft, verification, contextStr)
			if err != nil {
				m.step(logger, &state, EventError)
				return model.AuditOutput{}, err
			}
			attempts++
			refined = true
			if err := m.step(logger, &state, EventRefined); err != nil {
				return model.AuditOutput{}, err
			}
		}
	}

	score := m.scorer.Score(draft, verification, chunks, refined)
	if err := m.step(logger, &state, EventScored); err != nil {
		return model.AuditOutput{}, err
	}

	out := finalize(claim, draft, chunks, score, m.promptVersion, logger)
	if err := m.step(logger, &state, EventFinalized); err != nil {
		return model.AuditOutput{}, err
	}

	logger.Info("audit complete",
		zap.String("audit_id", out.AuditID),
		zap.String("decision", string(out.Decision)),
		zap.Float64("confidence", out.Confidence),
		zap.Int("attempts", attempts))
	return out, nil
}

// step applies an event and logs the transition.
func (m *Machine) step(logger *zap.Logger, state *State, event Event) error {
	next, err := Transition(*state, event)
	logger.Debug("state transition",
		zap.String("from", string(*state)),
		zap.String("event", string(event)),
		zap.String("to", string(next)))
	*state = next
	return err
}

func (m *Machine) draft(ctx context.Context, claim model.Claim, contextStr string) (*Draft, error) {
	resp, err := m.provider.Generate(ctx, llm.GenerateRequest{
		System:      auditorSystem,
		Prompt:      auditorPrompt(claim, contextStr),
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}
	return parseDraft(resp.Text)
}

func (m *Machine) verify(ctx context.Context, draft *Draft, chunks []model.ScoredChunk, contextStr string) (*Verification, error) {
	deterministic := deterministicChecks(draft, chunks)

	resp, err := m.provider.Generate(ctx, llm.GenerateRequest{
		System:   verifierSystem,
		Prompt:   verifierPrompt(draft.json(), contextStr),
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	verdict, err := parseVerification(resp.Text)
	if err != nil {
		return nil, err
	}
	return mergeVerification(verdict, deterministic), nil
}

func (m *Machine) refine(ctx context.Context, draft *Draft, verification *Verification, contextStr string) (*Draft, error) {
	resp, err := m.provider.Generate(ctx, llm.GenerateRequest{
		System:      auditorSystem,
		Prompt:      refinerPrompt(draft.json(), *verification, contextStr),
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	return parseDraft(resp.Text)
}
