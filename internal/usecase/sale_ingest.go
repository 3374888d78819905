package usecase

import (
	"context"
	"fmt"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/services/performance"
	"NFTAppraiser/pkg/logger"
)

// SaleRecorder persists settled sales into the historical store.
type SaleRecorder interface {
	RecordSale(ctx context.Context, sale *models.SaleRecord) error
}

// SaleIngestor processes live marketplace sales: persist the sale, and when a
// recent ensemble prediction exists for the asset, score every individual
// model against the realized price.
type SaleIngestor struct {
	recorder  SaleRecorder
	valuation *ValuationService
	tracker   *performance.Tracker
	monitor   *PerformanceMonitor
	log       *logger.Logger
}

func NewSaleIngestor(recorder SaleRecorder, valuation *ValuationService, tracker *performance.Tracker, monitor *PerformanceMonitor, log *logger.Logger) *SaleIngestor {
	return &SaleIngestor{
		recorder:  recorder,
		valuation: valuation,
		tracker:   tracker,
		monitor:   monitor,
		log:       log,
	}
}

// Process implements middleware.SaleProc.
func (i *SaleIngestor) Process(ctx context.Context, sale *models.SaleRecord) error {
	if err := i.recorder.RecordSale(ctx, sale); err != nil {
		return err
	}

	pred, ok := i.valuation.CachedPrediction(ctx, sale.CollectionID, sale.TokenID)
	if !ok {
		return nil
	}
	for _, p := range pred.Individual {
		i.tracker.Record(sale.CollectionID, p.Kind, p.PredictedPrice, sale.Price)
		i.monitor.Ingest(models.Outcome{
			ModelID:   fmt.Sprintf("%s:%s", sale.CollectionID, p.Kind),
			Predicted: p.PredictedPrice,
			Actual:    sale.Price,
			Timestamp: sale.Timestamp,
		})
	}
	i.log.Debug("scored prediction against realized sale",
		logger.String("collection_id", sale.CollectionID),
		logger.String("token_id", sale.TokenID),
		logger.Float64("price", sale.Price),
		logger.Int("models", len(pred.Individual)))
	return nil
}
