// Package analysisfeed provides an in-memory analysis provider fed by the
// external inference pipeline. It owns the analysis records the validation
// core reads, and accepts the derived validation-flag write-back.
package analysisfeed

import (
	"context"
	"sync"

	"clinicore/pkg/domain"
)

// Compile-time contract assertion ensuring the provider satisfies the domain port.
var _ domain.AnalysisProvider = (*Provider)(nil)

// Provider is a mutex-guarded in-memory analysis catalog.
type Provider struct {
	mu       sync.RWMutex
	analyses map[string]domain.Analysis
}

// NewProvider constructs an empty analysis catalog.
func NewProvider() *Provider {
	return &Provider{analyses: make(map[string]domain.Analysis)}
}

// Put registers or replaces an analysis record.
func (p *Provider) Put(analysis domain.Analysis) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyses[analysis.ID] = cloneAnalysis(analysis)
}

// GetAnalysis retrieves an analysis by id.
func (p *Provider) GetAnalysis(_ context.Context, id string) (domain.Analysis, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.analyses[id]
	if !ok {
		return domain.Analysis{}, domain.NotFoundError{Entity: domain.EntityAnalysis, ID: id}
	}
	return cloneAnalysis(a), nil
}

// UpdateValidationStatus writes back the derived validated flag.
func (p *Provider) UpdateValidationStatus(_ context.Context, id string, validated bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.analyses[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAnalysis, ID: id}
	}
	a.IsValidated = validated
	p.analyses[id] = a
	return nil
}

func cloneAnalysis(a domain.Analysis) domain.Analysis {
	cp := a
	if a.AIConfidence != nil {
		conf := *a.AIConfidence
		cp.AIConfidence = &conf
	}
	if a.Measurements != nil {
		cp.Measurements = make(map[string]float64, len(a.Measurements))
		for k, v := range a.Measurements {
			cp.Measurements[k] = v
		}
	}
	return cp
}
