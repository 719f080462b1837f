package core

import (
	"context"

	"github.com/rotisserie/eris"

	"clinicore/pkg/domain"
)

// Tier-2 escalation accepts physicians with at least this much experience
// when no qualifying cardiologist is available.
const fallbackMinExperienceYears = 3

// CreateUrgentValidation finds the best available validator for an urgent
// analysis and assigns it through the normal creation path. An empty
// candidate pool is a normal business outcome: a no-validator alert is
// emitted, a warning is logged, and the call returns nil. Only a missing
// analysis or an infrastructure failure surfaces as an error.
func (s *Service) CreateUrgentValidation(ctx context.Context, analysisID string) error {
	finish := s.instrument(ctx, "create_urgent_validation")
	err := s.createUrgentValidation(ctx, analysisID)
	finish(err)
	return err
}

func (s *Service) createUrgentValidation(ctx context.Context, analysisID string) error {
	analysis, err := s.analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return err
	}

	candidate, found, err := s.findEscalationCandidate(ctx)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Warn("no validator available for urgent analysis",
			"analysis_id", analysis.ID, "urgency", string(analysis.ClinicalUrgency))
		s.publish(ctx, Event{
			Kind:       domain.EventNoValidatorAvailable,
			AnalysisID: analysis.ID,
			Urgency:    analysis.ClinicalUrgency,
			OccurredAt: s.nowFn(),
		})
		return nil
	}

	created, err := s.createValidation(ctx, CreateValidationInput{
		AnalysisID:               analysis.ID,
		ValidatorID:              candidate.ID,
		ValidatorRole:            candidate.Role,
		ValidatorExperienceYears: candidate.ExperienceYears,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{
		Kind:         domain.EventUrgentValidationAlert,
		AnalysisID:   analysis.ID,
		ValidationID: created.ID,
		ValidatorID:  candidate.ID,
		Urgency:      analysis.ClinicalUrgency,
		OccurredAt:   s.nowFn(),
	})
	return nil
}

// findEscalationCandidate queries the roster tier by tier: cardiologists at
// the critical experience floor first, then physicians with the fallback
// minimum. The first tier producing candidates wins.
func (s *Service) findEscalationCandidate(ctx context.Context) (Validator, bool, error) {
	tiers := []struct {
		role          ValidatorRole
		minExperience int
	}{
		{RoleCardiologist, s.policy.MinExperienceYearsCritical},
		{RolePhysician, fallbackMinExperienceYears},
	}
	for _, tier := range tiers {
		candidates, err := s.directory.AvailableValidators(ctx, tier.role, tier.minExperience)
		if err != nil {
			return Validator{}, false, eris.Wrap(err, "query validator directory")
		}
		if best, ok := pickCandidate(candidates); ok {
			return best, true, nil
		}
	}
	return Validator{}, false, nil
}

// pickCandidate selects the most experienced validator; equal experience is
// broken by lowest ID so escalation stays deterministic.
func pickCandidate(candidates []Validator) (Validator, bool) {
	var best Validator
	found := false
	for _, candidate := range candidates {
		if !found || moreQualified(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

func moreQualified(a, b Validator) bool {
	ea, eb := experienceOf(a), experienceOf(b)
	if ea != eb {
		return ea > eb
	}
	return a.ID < b.ID
}

func experienceOf(v Validator) int {
	if v.ExperienceYears == nil {
		return 0
	}
	return *v.ExperienceYears
}
