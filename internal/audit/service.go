package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/llm"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/retrieve"
)

// ErrNoEvidence mirrors the retriever's sentinel for callers that only
// import this package.
var ErrNoEvidence = retrieve.ErrNoEvidence

// Service wraps the machine with claim validation, a wall-clock budget
// and the degraded fallback path for transient upstream failures.
type Service struct {
	machine *Machine
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(machine *Machine, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{machine: machine, timeout: timeout, logger: logger}
}

// Audit runs the full workflow for one claim.
//
// Error handling is split three ways: validation problems and missing
// evidence surface as errors for the caller, transient upstream
// failures degrade to a clearly labeled mock output, and anything else
// propagates.
func (s *Service) Audit(ctx context.Context, claim model.Claim) (model.AuditOutput, error) {
	if err := claim.Validate(); err != nil {
		return model.AuditOutput{}, fmt.Errorf("invalid claim: %w", err)
	}
	claim.EnsureID()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.machine.Run(ctx, claim)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, retrieve.ErrNoEvidence) {
		return model.AuditOutput{}, err
	}
	if llm.IsTransient(err) {
		s.logger.Warn("transient upstream failure, returning degraded mock audit",
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
		return mockFallback(claim), nil
	}
	return model.AuditOutput{}, fmt.Errorf("audit pipeline failed: %w", err)
}
