package providers

import (
	"context"
	"fmt"
	"time"

	"NFTAppraiser/internal/domain/models"
	domsvc "NFTAppraiser/internal/domain/service"
)

// HTTPProvider is a ModelProvider backed by an external model-serving
// endpoint. One instance per registered model kind; the serving side owns the
// statistical internals, this client only speaks the predict contract.
type HTTPProvider struct {
	kind models.ModelKind
	base *HTTPServiceBase
}

// NewHTTPProvider creates a provider client for one model kind.
func NewHTTPProvider(kind models.ModelKind, baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{kind: kind, base: NewHTTPServiceBase(baseURL, timeout)}
}

func (p *HTTPProvider) Kind() models.ModelKind { return p.kind }

type predictReq struct {
	Kind        string             `json:"model_kind"`
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}

type predictResp struct {
	PredictedPrice float64  `json:"predicted_price"`
	Lower          float64  `json:"lower"`
	Upper          float64  `json:"upper"`
	Confidence     float64  `json:"confidence"`
	ComparableIDs  []string `json:"comparable_ids,omitempty"`
}

// Predict calls the serving endpoint. Deadline handling is the caller's: the
// ensemble passes a per-provider context and treats expiry as absence.
func (p *HTTPProvider) Predict(ctx context.Context, features models.FeatureRecord) (models.ModelPrediction, error) {
	var result models.ModelPrediction
	var pr predictResp
	err := p.base.PostJSON(ctx, "/predict", predictReq{
		Kind:        string(p.kind),
		Numeric:     features.Numeric,
		Categorical: features.Categorical,
	}, &pr)
	if err != nil {
		return result, fmt.Errorf("predict %s: %w", p.kind, err)
	}
	if pr.PredictedPrice <= 0 {
		return result, fmt.Errorf("predict %s: non-positive price %v", p.kind, pr.PredictedPrice)
	}
	result.Kind = p.kind
	result.PredictedPrice = pr.PredictedPrice
	result.Interval = models.ConfidenceInterval{Lower: pr.Lower, Upper: pr.Upper}
	result.ConfidenceScore = pr.Confidence
	result.ComparableIDs = pr.ComparableIDs
	return result, nil
}

var _ domsvc.ModelProvider = (*HTTPProvider)(nil)
