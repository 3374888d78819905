package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NFTAppraiser/internal/domain/models"
	domrepo "NFTAppraiser/internal/domain/repository"
	"NFTAppraiser/pkg/cache"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

// ValuationService orchestrates one valuation request end to end: load the
// asset and collection, run the ensemble, derive the requested view. Ensemble
// outputs are cached briefly so the five views and repeat requests share one
// model fan-out.
type ValuationService struct {
	ensemble *EnsembleIntegrator
	intel    *ValuationIntelligence
	store    domrepo.CollectionStore
	cache    cache.Service
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewValuationService(
	ensemble *EnsembleIntegrator,
	intel *ValuationIntelligence,
	store domrepo.CollectionStore,
	c cache.Service,
	cfg config.EnsembleConfig,
	log *logger.Logger,
) *ValuationService {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ValuationService{
		ensemble: ensemble,
		intel:    intel,
		store:    store,
		cache:    c,
		cacheTTL: ttl,
		log:      log,
	}
}

func predictionCacheKey(collectionID, tokenID string) string {
	return fmt.Sprintf("appraiser:pred:%s:%s", collectionID, tokenID)
}

// Predict returns the ensemble prediction for one asset, from cache when a
// fresh one exists.
func (s *ValuationService) Predict(ctx context.Context, collectionID, tokenID, category string) (*models.EnsemblePrediction, error) {
	key := predictionCacheKey(collectionID, tokenID)
	if b, err := s.cache.Get(ctx, key); err == nil {
		var pred models.EnsemblePrediction
		if jsonErr := json.Unmarshal(b, &pred); jsonErr == nil {
			return &pred, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("prediction cache read failed", logger.Error(err))
	}

	asset, col, err := s.loadPair(ctx, collectionID, tokenID)
	if err != nil {
		return nil, err
	}
	pred, err := s.ensemble.Combine(ctx, asset, col, category)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(pred); err == nil {
		if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
			s.log.Warn("prediction cache write failed", logger.Error(err))
		}
	}
	return pred, nil
}

// CachedPrediction returns the cached ensemble output without triggering a
// model fan-out. Used by the live sale ingest to pair sales with the
// prediction that preceded them.
func (s *ValuationService) CachedPrediction(ctx context.Context, collectionID, tokenID string) (*models.EnsemblePrediction, bool) {
	b, err := s.cache.Get(ctx, predictionCacheKey(collectionID, tokenID))
	if err != nil {
		return nil, false
	}
	var pred models.EnsemblePrediction
	if err := json.Unmarshal(b, &pred); err != nil {
		return nil, false
	}
	return &pred, true
}

// Report bundles the prediction with all five derived views.
func (s *ValuationService) Report(ctx context.Context, collectionID, tokenID, category string, currentPrice float64) (*models.ValuationReport, error) {
	pred, err := s.Predict(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	asset, col, err := s.loadPair(ctx, collectionID, tokenID)
	if err != nil {
		return nil, err
	}
	return &models.ValuationReport{
		Prediction: pred,
		FairValue:  s.intel.FairValue(pred, asset, col),
		Trend:      s.intel.Trend(pred, asset, col),
		Assessment: s.intel.Assessment(pred, asset, col, currentPrice),
		Volatility: s.intel.Volatility(pred, asset, col),
		Confidence: s.intel.Confidence(pred, asset, col),
		Timestamp:  time.Now(),
	}, nil
}

// FairValue returns only the fair-value view.
func (s *ValuationService) FairValue(ctx context.Context, collectionID, tokenID, category string) (*models.FairValueReport, error) {
	pred, asset, col, err := s.predictAndLoad(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	return s.intel.FairValue(pred, asset, col), nil
}

// Trend returns only the trend forecast.
func (s *ValuationService) Trend(ctx context.Context, collectionID, tokenID, category string) (*models.TrendForecast, error) {
	pred, asset, col, err := s.predictAndLoad(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	return s.intel.Trend(pred, asset, col), nil
}

// Assessment returns only the under/overvalued classification.
func (s *ValuationService) Assessment(ctx context.Context, collectionID, tokenID, category string, currentPrice float64) (*models.ValuationAssessment, error) {
	pred, asset, col, err := s.predictAndLoad(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	return s.intel.Assessment(pred, asset, col, currentPrice), nil
}

// Volatility returns only the volatility report.
func (s *ValuationService) Volatility(ctx context.Context, collectionID, tokenID, category string) (*models.VolatilityReport, error) {
	pred, asset, col, err := s.predictAndLoad(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	return s.intel.Volatility(pred, asset, col), nil
}

// Confidence returns only the confidence report.
func (s *ValuationService) Confidence(ctx context.Context, collectionID, tokenID, category string) (*models.ConfidenceReport, error) {
	pred, asset, col, err := s.predictAndLoad(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, err
	}
	return s.intel.Confidence(pred, asset, col), nil
}

func (s *ValuationService) predictAndLoad(ctx context.Context, collectionID, tokenID, category string) (*models.EnsemblePrediction, *models.Asset, *models.Collection, error) {
	pred, err := s.Predict(ctx, collectionID, tokenID, category)
	if err != nil {
		return nil, nil, nil, err
	}
	asset, col, err := s.loadPair(ctx, collectionID, tokenID)
	if err != nil {
		return nil, nil, nil, err
	}
	return pred, asset, col, nil
}

func (s *ValuationService) loadPair(ctx context.Context, collectionID, tokenID string) (*models.Asset, *models.Collection, error) {
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}
	asset, err := s.store.GetAsset(ctx, collectionID, tokenID)
	if err != nil {
		return nil, nil, err
	}
	return asset, col, nil
}
