package repository

import (
	"context"
	"time"

	"NFTAppraiser/internal/domain/models"
)

// CollectionStore provides read-only access to collections, assets, and the
// append-only sale history.
type CollectionStore interface {
	GetCollection(ctx context.Context, collectionID string) (*models.Collection, error)
	GetAsset(ctx context.Context, collectionID, tokenID string) (*models.Asset, error)
	GetSales(ctx context.Context, collectionID string, from, to time.Time) ([]models.SaleRecord, error)
}

// PerformanceStore persists tracker snapshots across restarts.
type PerformanceStore interface {
	Save(ctx context.Context, records []models.ModelPerformanceRecord) error
	Load(ctx context.Context) ([]models.ModelPerformanceRecord, error)
}

// SaleStream delivers live sale outcomes from a marketplace feed.
type SaleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.SaleRecord, <-chan error)
	Close() error
	IsConnected() bool
}

// Metrics abstracts operational counters and gauges.
type Metrics interface {
	RecordPrediction(collectionID string)
	RecordProviderFailure(kind string)
	RecordFallback(strategy string)
	RecordModelWeight(collectionID, kind string, weight float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
