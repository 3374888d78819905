package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NFTAppraiser/internal/domain/models"
	domrepo "NFTAppraiser/internal/domain/repository"
	domsvc "NFTAppraiser/internal/domain/service"
	"NFTAppraiser/internal/services/features"
	"NFTAppraiser/internal/services/providers"
	"NFTAppraiser/pkg/config"
	xlogger "NFTAppraiser/pkg/logger"
)

// EnsembleIntegrator fans out to every registered model provider and combines
// the surviving outputs into one prediction with an explanation.
type EnsembleIntegrator struct {
	registry *providers.Registry
	tracker  domsvc.PerformanceTracker
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	cfg      config.EnsembleConfig
	timeout  time.Duration
}

func NewEnsembleIntegrator(
	registry *providers.Registry,
	tracker domsvc.PerformanceTracker,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	cfg config.EnsembleConfig,
	providerTimeout time.Duration,
) *EnsembleIntegrator {
	if providerTimeout <= 0 {
		providerTimeout = 3 * time.Second
	}
	return &EnsembleIntegrator{
		registry: registry,
		tracker:  tracker,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		timeout:  providerTimeout,
	}
}

// Combine produces the ensemble prediction for one asset. category may be
// empty; when set it selects the specialization boost table.
func (e *EnsembleIntegrator) Combine(ctx context.Context, asset *models.Asset, col *models.Collection, category string) (*models.EnsemblePrediction, error) {
	if !asset.Valid() || !col.Valid() || asset.CollectionID != col.ID {
		return nil, ErrInvalidInput
	}
	if category == "" {
		category = asset.Category
	}

	start := time.Now()
	feats := features.Build(asset, col)
	preds := e.fanOut(ctx, feats)
	if len(preds) == 0 {
		e.metrics.RecordError("no_predictions")
		return nil, fmt.Errorf("combine %s/%s: %w", asset.CollectionID, asset.TokenID, ErrNoPredictions)
	}

	weights := e.survivorWeights(col.ID, preds)
	out := e.combine(preds, weights)
	out.Timestamp = time.Now()

	if category != "" {
		e.applyCategoryBoost(out, category)
	}
	e.applyFallback(out, asset, col)
	e.explain(out)

	e.metrics.RecordPrediction(col.ID)
	e.metrics.RecordLatency("ensemble_combine", time.Since(start).Seconds())
	for k, w := range out.Weights {
		e.metrics.RecordModelWeight(col.ID, string(k), w)
	}
	return out, nil
}

// fanOut invokes every provider concurrently. A provider that fails or
// exceeds its timeout is excluded from the result; the others are unaffected.
func (e *EnsembleIntegrator) fanOut(ctx context.Context, feats models.FeatureRecord) []models.ModelPrediction {
	all := e.registry.All()

	type item struct {
		pred models.ModelPrediction
		err  error
		kind models.ModelKind
	}
	ch := make(chan item, len(all))
	var wg sync.WaitGroup

	for _, p := range all {
		wg.Add(1)
		go func(p domsvc.ModelProvider) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			pred, err := p.Predict(cctx, feats)
			ch <- item{pred: pred, err: err, kind: p.Kind()}
		}(p)
	}

	go func() { wg.Wait(); close(ch) }()

	preds := make([]models.ModelPrediction, 0, len(all))
	for it := range ch {
		if it.err != nil {
			e.metrics.RecordProviderFailure(string(it.kind))
			if e.logger != nil {
				e.logger.Warn("provider excluded",
					xlogger.String("kind", string(it.kind)),
					xlogger.Error(it.err),
				)
			}
			continue
		}
		preds = append(preds, it.pred)
	}
	// stable order regardless of goroutine completion order
	sort.Slice(preds, func(i, j int) bool { return preds[i].Kind < preds[j].Kind })
	return preds
}

// survivorWeights renormalizes the tracker's inverse-MAPE weights over the
// kinds that actually produced a prediction.
func (e *EnsembleIntegrator) survivorWeights(collectionID string, preds []models.ModelPrediction) map[models.ModelKind]float64 {
	base := e.tracker.Weights(collectionID)
	out := make(map[models.ModelKind]float64, len(preds))
	total := 0.0
	for _, p := range preds {
		w := base[p.Kind]
		out[p.Kind] = w
		total += w
	}
	if total <= 0 {
		// all unknown kinds; split evenly
		for k := range out {
			out[k] = 1 / float64(len(out))
		}
		return out
	}
	for k := range out {
		out[k] /= total
	}
	return out
}

func (e *EnsembleIntegrator) combine(preds []models.ModelPrediction, weights map[models.ModelKind]float64) *models.EnsemblePrediction {
	price := 0.0
	score := 0.0
	lower := preds[0].Interval.Lower
	upper := preds[0].Interval.Upper
	for _, p := range preds {
		w := weights[p.Kind]
		price += w * p.PredictedPrice
		score += w * p.ConfidenceScore
		if p.Interval.Lower < lower {
			lower = p.Interval.Lower
		}
		if p.Interval.Upper > upper {
			upper = p.Interval.Upper
		}
	}

	out := &models.EnsemblePrediction{
		ModelPrediction: models.ModelPrediction{
			PredictedPrice: price,
			// min/max envelope across providers: deliberately conservative,
			// wider than a weighted quantile. Safety over tightness.
			Interval:        models.ConfidenceInterval{Lower: lower, Upper: upper},
			ConfidenceScore: score,
			Kind:            "ensemble",
		},
		Weights:    weights,
		Individual: preds,
	}
	out.ClampInterval()
	return out
}

// applyCategoryBoost multiplies the weights of category-favored kinds by the
// configured boost, renormalizes, and recomputes the price. Interval and
// confidence are unchanged.
func (e *EnsembleIntegrator) applyCategoryBoost(out *models.EnsemblePrediction, category string) {
	boosts, ok := e.cfg.CategoryBoosts[category]
	if !ok {
		return
	}
	total := 0.0
	for k, w := range out.Weights {
		if b, ok := boosts[string(k)]; ok && b > 1 {
			w *= b
		}
		out.Weights[k] = w
		total += w
	}
	if total <= 0 {
		return
	}
	price := 0.0
	for _, p := range out.Individual {
		out.Weights[p.Kind] /= total
		price += out.Weights[p.Kind] * p.PredictedPrice
	}
	out.PredictedPrice = price
	out.ClampInterval()
}

// applyFallback runs the ordered cascade when the combined confidence is
// below the cutoff. First applicable strategy wins. Degraded confidence is
// data, not an error: the result carries the fallback factor and a widened
// interval so callers can render caveats.
func (e *EnsembleIntegrator) applyFallback(out *models.EnsemblePrediction, asset *models.Asset, col *models.Collection) {
	if out.ConfidenceScore >= e.cfg.FallbackConfidence {
		return
	}

	strategy := ""
	switch {
	case e.comparableOverride(out):
		strategy = "comparable_override"
	case e.floorRarityBlend(out, col):
		strategy = "floor_rarity_blend"
	case e.recentSalesBlend(out, col):
		strategy = "recent_sales_blend"
	}
	if strategy == "" {
		return
	}

	out.FallbackApplied = true
	out.Interval = models.ConfidenceInterval{
		Lower: out.PredictedPrice * (1 - e.cfg.IntervalSpread),
		Upper: out.PredictedPrice * (1 + e.cfg.IntervalSpread),
	}
	out.ConfidenceScore = e.cfg.FallbackScore
	out.Factors = append([]models.ExplanationFactor{{
		Factor:      "Fallback Strategy",
		Description: fmt.Sprintf("low ensemble confidence, applied %s", strategy),
		Impact:      models.ImpactHigh,
	}}, out.Factors...)
	e.metrics.RecordFallback(strategy)
	if e.logger != nil {
		e.logger.Info("fallback applied",
			xlogger.String("collection", asset.CollectionID),
			xlogger.String("token", asset.TokenID),
			xlogger.String("strategy", strategy),
		)
	}
}

// comparableOverride raises the comparable-sales weight to the configured
// share when that provider alone is confident enough.
func (e *EnsembleIntegrator) comparableOverride(out *models.EnsemblePrediction) bool {
	comp, ok := out.IndividualByKind(models.KindComparable)
	if !ok || comp.ConfidenceScore <= e.cfg.ComparableOverride {
		return false
	}
	rest := len(out.Individual) - 1
	restShare := 0.0
	if rest > 0 {
		restShare = (1 - e.cfg.ComparableWeight) / float64(rest)
	}
	price := 0.0
	for _, p := range out.Individual {
		w := restShare
		if p.Kind == models.KindComparable {
			w = e.cfg.ComparableWeight
			if rest == 0 {
				w = 1
			}
		}
		out.Weights[p.Kind] = w
		price += w * p.PredictedPrice
	}
	out.PredictedPrice = price
	return true
}

// floorRarityBlend anchors the price to the collection floor scaled by the
// rarity model's view, clamped to a sane multiple of floor.
func (e *EnsembleIntegrator) floorRarityBlend(out *models.EnsemblePrediction, col *models.Collection) bool {
	if col.FloorPrice <= 0 {
		return false
	}
	rar, ok := out.IndividualByKind(models.KindRarity)
	if !ok {
		return false
	}
	mult := features.Clamp(rar.PredictedPrice/col.FloorPrice, 0.5, 3)
	anchor := col.FloorPrice * mult
	w := e.cfg.FloorBlendWeight
	out.PredictedPrice = w*anchor + (1-w)*out.PredictedPrice
	return true
}

// recentSalesBlend pulls the price toward the recent average when the
// collection traded inside the recency window.
func (e *EnsembleIntegrator) recentSalesBlend(out *models.EnsemblePrediction, col *models.Collection) bool {
	cutoff := time.Now().Add(-e.cfg.RecentSalesWindow)
	avg, n := col.AvgPriceSince(cutoff)
	if n == 0 {
		return false
	}
	w := e.cfg.RecentBlendWeight
	out.PredictedPrice = w*avg + (1-w)*out.PredictedPrice
	return true
}

// explain appends one factor per surviving model kind, tiered by weight and
// sorted high to low. A fallback factor, when present, stays first.
func (e *EnsembleIntegrator) explain(out *models.EnsemblePrediction) {
	type weighted struct {
		factor models.ExplanationFactor
		weight float64
	}
	kindFactors := make([]weighted, 0, len(out.Individual))
	for _, p := range out.Individual {
		w := out.Weights[p.Kind]
		tier := models.ImpactLow
		switch {
		case w >= e.cfg.HighImpactWeight:
			tier = models.ImpactHigh
		case w >= e.cfg.MediumImpactWeight:
			tier = models.ImpactMedium
		}
		kindFactors = append(kindFactors, weighted{
			factor: models.ExplanationFactor{
				Factor:      fmt.Sprintf("%s model", p.Kind),
				Description: fmt.Sprintf("weight %.2f, predicted %.4f with confidence %.2f", w, p.PredictedPrice, p.ConfidenceScore),
				Impact:      tier,
			},
			weight: w,
		})
	}
	sort.SliceStable(kindFactors, func(i, j int) bool {
		return kindFactors[i].weight > kindFactors[j].weight
	})
	for _, kf := range kindFactors {
		out.Factors = append(out.Factors, kf.factor)
	}
}
