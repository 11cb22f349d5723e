package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Chain tries providers in order, falling through to the next one on
// transient upstream failures. A non-transient error stops the chain
// immediately since it would fail everywhere.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	var active []Provider
	for _, p := range providers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Chain{providers: active, logger: logger}
}

// Name returns the provider name
func (c *Chain) Name() string {
	if len(c.providers) == 1 {
		return c.providers[0].Name()
	}
	return "chain"
}

// IsAvailable reports whether any provider in the chain is available
func (c *Chain) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// Generate runs the request against each provider in order
func (c *Chain) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		c.logger.Warn("provider failed with transient error, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("all providers exhausted: %w", lastErr)
}
