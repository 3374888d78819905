package models

import "time"

// ModelKind identifies a model family registered with the ensemble.
type ModelKind string

const (
	KindRegression ModelKind = "regression"
	KindTimeSeries ModelKind = "timeseries"
	KindComparable ModelKind = "comparable"
	KindRarity     ModelKind = "rarity"
)

// KnownKinds lists every supported model kind.
func KnownKinds() []ModelKind {
	return []ModelKind{KindRegression, KindTimeSeries, KindComparable, KindRarity}
}

// IsValidKind reports whether k is a supported model kind.
func IsValidKind(k ModelKind) bool {
	switch k {
	case KindRegression, KindTimeSeries, KindComparable, KindRarity:
		return true
	default:
		return false
	}
}

// ConfidenceInterval bounds a point prediction.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ModelPrediction is a single provider's output. Produced fresh per request,
// never persisted.
type ModelPrediction struct {
	PredictedPrice  float64            `json:"predicted_price"`
	Interval        ConfidenceInterval `json:"confidence_interval"`
	ConfidenceScore float64            `json:"confidence_score"` // [0,1]
	Kind            ModelKind          `json:"model_kind"`
	ComparableIDs   []string           `json:"comparable_ids,omitempty"`
}

// ImpactTier coarsely ranks an explanation factor's contribution.
type ImpactTier string

const (
	ImpactHigh   ImpactTier = "high"
	ImpactMedium ImpactTier = "medium"
	ImpactLow    ImpactTier = "low"
)

// ExplanationFactor is one human-readable contributor to the combined price.
type ExplanationFactor struct {
	Factor      string     `json:"factor"`
	Description string     `json:"description"`
	Impact      ImpactTier `json:"impact"`
}

// EnsemblePrediction is the combined output of all surviving providers.
// Invariants: Interval.Lower <= PredictedPrice <= Interval.Upper and weights
// are non-negative and sum to 1.
type EnsemblePrediction struct {
	ModelPrediction
	Timestamp       time.Time             `json:"timestamp"`
	Weights         map[ModelKind]float64 `json:"model_weights"`
	Individual      []ModelPrediction     `json:"individual_predictions"`
	Factors         []ExplanationFactor   `json:"explanation_factors"`
	FallbackApplied bool                  `json:"fallback_applied"`
}

// IndividualByKind returns the surviving prediction for a kind, if present.
func (e *EnsemblePrediction) IndividualByKind(kind ModelKind) (ModelPrediction, bool) {
	for _, p := range e.Individual {
		if p.Kind == kind {
			return p, true
		}
	}
	return ModelPrediction{}, false
}

// ClampInterval stretches the interval to contain the predicted price, which
// combination steps can move past the original envelope.
func (e *EnsemblePrediction) ClampInterval() {
	if e.PredictedPrice < e.Interval.Lower {
		e.Interval.Lower = e.PredictedPrice
	}
	if e.PredictedPrice > e.Interval.Upper {
		e.Interval.Upper = e.PredictedPrice
	}
}
