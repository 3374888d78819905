package service

import (
	"context"

	"NFTAppraiser/internal/domain/models"
)

// ModelProvider is the uniform predict-with-confidence contract every model
// implementation exposes. A provider must return within the caller's context
// deadline or it is treated as absent for that request.
type ModelProvider interface {
	Kind() models.ModelKind
	Predict(ctx context.Context, features models.FeatureRecord) (models.ModelPrediction, error)
}

// PerformanceTracker maintains the per-(collection, model kind) decayed error
// profile used for dynamic weighting. Read-modify-write per key is atomic;
// distinct keys update independently.
type PerformanceTracker interface {
	Record(collectionID string, kind models.ModelKind, predicted, actual float64)
	Weights(collectionID string) map[models.ModelKind]float64
	Get(collectionID string, kind models.ModelKind) (models.ModelPerformanceRecord, bool)
	Snapshot() []models.ModelPerformanceRecord
	Restore(records []models.ModelPerformanceRecord)
}

// TriggerPublisher hands firing retraining triggers to the external training
// job dispatcher.
type TriggerPublisher interface {
	PublishTriggers(ctx context.Context, triggers []models.RetrainingTrigger) error
}
