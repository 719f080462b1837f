package core

import "context"

// qualityBand describes one recognised reviewer rating: its reference range
// and how to read it off a submitted validation.
type qualityBand struct {
	name  string
	unit  string
	min   float64
	max   float64
	value func(Validation) *float64
}

var qualityBands = []qualityBand{
	{
		name: "signal_quality_rating", unit: "rating", min: 3.0, max: 5.0,
		value: func(v Validation) *float64 { return v.SignalQualityRating },
	},
	{
		name: "ai_confidence_rating", unit: "rating", min: 3.0, max: 5.0,
		value: func(v Validation) *float64 { return v.AIConfidenceRating },
	},
	{
		name: "overall_quality_score", unit: "score", min: 0.7, max: 1.0,
		value: func(v Validation) *float64 { return v.OverallQualityScore },
	},
}

// recordQualityMetrics persists one QualityMetric per rating present on the
// submitted validation. Recording is sparse: absent ratings produce nothing.
// IsWithinNormal is fixed at creation as value >= normal_min. Individual
// persistence failures are logged and never fail the enclosing submission.
func (s *Service) recordQualityMetrics(ctx context.Context, validation Validation) {
	for _, band := range qualityBands {
		value := band.value(validation)
		if value == nil {
			continue
		}
		metric := QualityMetric{
			AnalysisID:        validation.AnalysisID,
			MetricName:        band.name,
			MetricValue:       *value,
			MetricUnit:        band.unit,
			NormalMin:         band.min,
			NormalMax:         band.max,
			IsWithinNormal:    *value >= band.min,
			CalculationMethod: "reviewer_rating",
		}
		if _, err := s.store.AppendQualityMetric(ctx, metric); err != nil {
			s.logger.Error("persist quality metric",
				"metric", band.name, "validation_id", validation.ID, "error", err)
		}
	}
}
