package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/services/performance"
	"NFTAppraiser/pkg/logger"
)

// saleOutcomeMessage is the wire form of a settled sale paired with the
// prediction each model made for it.
type saleOutcomeMessage struct {
	CollectionID string    `json:"collection_id"`
	TokenID      string    `json:"token_id"`
	ModelKind    string    `json:"model_kind"`
	Predicted    float64   `json:"predicted"`
	Actual       float64   `json:"actual"`
	Features     []float64 `json:"features,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SaleOutcomesHandler consumes settled-sale outcomes and feeds both the
// performance tracker and the drift monitor.
type SaleOutcomesHandler struct {
	topic   string
	tracker *performance.Tracker
	monitor *PerformanceMonitor
	log     *logger.Logger
}

func NewSaleOutcomesHandler(topic string, tracker *performance.Tracker, monitor *PerformanceMonitor, log *logger.Logger) *SaleOutcomesHandler {
	return &SaleOutcomesHandler{
		topic:   topic,
		tracker: tracker,
		monitor: monitor,
		log:     log,
	}
}

func (h *SaleOutcomesHandler) Topic() string { return h.topic }

// Handle validates and applies one outcome. Malformed payloads are returned
// as errors so the consumer's retry and DLQ machinery sees them; semantically
// empty outcomes are dropped silently.
func (h *SaleOutcomesHandler) Handle(ctx context.Context, data []byte) error {
	var msg saleOutcomeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode sale outcome: %w", err)
	}
	if msg.CollectionID == "" || !models.IsValidKind(models.ModelKind(msg.ModelKind)) {
		return fmt.Errorf("sale outcome missing collection or kind: %q/%q", msg.CollectionID, msg.ModelKind)
	}
	if msg.Actual <= 0 || msg.Predicted <= 0 {
		h.log.Debug("dropping outcome with non-positive price",
			logger.String("collection_id", msg.CollectionID),
			logger.String("token_id", msg.TokenID))
		return nil
	}

	kind := models.ModelKind(msg.ModelKind)
	h.tracker.Record(msg.CollectionID, kind, msg.Predicted, msg.Actual)
	h.monitor.Ingest(models.Outcome{
		ModelID:   fmt.Sprintf("%s:%s", msg.CollectionID, kind),
		Predicted: msg.Predicted,
		Actual:    msg.Actual,
		Features:  msg.Features,
		Timestamp: msg.Timestamp,
	})
	return nil
}
