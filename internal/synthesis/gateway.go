// Package synthesis sends evidence and query to an ordered chain of
// generation providers, stopping at the first success. The chain is an
// explicit loop over a configuration-driven provider list, not nested
// error handling.
package synthesis

import (
	"context"
	"errors"
	"fmt"

	"advisor/internal/logger"
)

// ErrAllProvidersFailed is returned when every candidate in the chain
// failed. It is a hard failure, distinct from the insufficient-evidence
// refusal.
var ErrAllProvidersFailed = errors.New("all generation providers failed")

// Result carries the raw structured text plus the provider that produced it.
// Partial outputs from different candidates are never merged.
type Result struct {
	Text     string
	Provider string
}

// Gateway owns the ordered fallback chain.
type Gateway struct {
	providers []Provider
}

// NewGateway creates a gateway over the given providers, tried in order.
func NewGateway(providers ...Provider) *Gateway {
	return &Gateway{providers: providers}
}

// Generate walks the chain sequentially: one call per candidate with at most
// one retry on a transient failure, first success wins and is returned
// unmodified. modelHint rotates the named provider to the front; unknown
// hints are ignored (a deployment may pin a server-side chain regardless).
func (g *Gateway) Generate(ctx context.Context, query, evidenceBlock, categoryID, modelHint string) (Result, error) {
	if len(g.providers) == 0 {
		return Result{}, fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	req := Request{
		System:   PromptFor(categoryID),
		Query:    query,
		Evidence: evidenceBlock,
	}

	logger.Section("synthesis")
	var errs []error
	for _, p := range g.ordered(modelHint) {
		logger.Debug("attempting provider %s", p.Name())
		text, err := g.invokeOnce(ctx, p, req)
		if err == nil {
			logger.Info("provider %s succeeded", p.Name())
			return Result{Text: text, Provider: p.Name()}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logger.Warn("provider %s failed: %v", p.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return Result{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// invokeOnce issues one call, retrying a single time on a transient failure.
// Generation calls carry real cost, so the retry budget stays at one.
func (g *Gateway) invokeOnce(ctx context.Context, p Provider, req Request) (string, error) {
	text, err := p.Invoke(ctx, req)
	if err == nil {
		return text, nil
	}
	if !isTransient(err) || ctx.Err() != nil {
		return "", err
	}
	logger.Debug("provider %s transient failure, retrying once: %v", p.Name(), err)
	return p.Invoke(ctx, req)
}

// ordered returns the provider chain with the hinted provider first. The
// relative order of the others is preserved.
func (g *Gateway) ordered(modelHint string) []Provider {
	if modelHint == "" {
		return g.providers
	}
	idx := -1
	for i, p := range g.providers {
		if p.Name() == modelHint {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return g.providers
	}
	out := make([]Provider, 0, len(g.providers))
	out = append(out, g.providers[idx])
	for i, p := range g.providers {
		if i != idx {
			out = append(out, p)
		}
	}
	return out
}
