package api

import (
	"fmt"

	"github.com/labstack/echo/v4"

	models "NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/services/performance"
	"NFTAppraiser/internal/usecase"
	xhttp "NFTAppraiser/pkg/http"
	xlogger "NFTAppraiser/pkg/logger"
)

// LifecycleEchoHandler exposes outcome recording and retraining evaluation.
type LifecycleEchoHandler struct {
	logger  *xlogger.Logger
	tracker *performance.Tracker
	monitor *usecase.PerformanceMonitor
	manager *usecase.RetrainingManager
}

func NewLifecycleEchoHandler(logger *xlogger.Logger, tracker *performance.Tracker, monitor *usecase.PerformanceMonitor, manager *usecase.RetrainingManager) *LifecycleEchoHandler {
	return &LifecycleEchoHandler{logger: logger, tracker: tracker, monitor: monitor, manager: manager}
}

func (h *LifecycleEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/performance/record", h.RecordOutcome)
	g.GET("/retraining/evaluate", h.EvaluateRetraining)
}

// RecordOutcome feeds one prediction/actual pair into the tracker and the
// drift monitor, and returns the collection's refreshed model weights.
func (h *LifecycleEchoHandler) RecordOutcome(c echo.Context) error {
	req := &models.RecordOutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	kind := models.ModelKind(req.ModelKind)
	h.tracker.Record(req.CollectionID, kind, req.Predicted, req.Actual)
	h.monitor.Ingest(models.Outcome{
		ModelID:   fmt.Sprintf("%s:%s", req.CollectionID, kind),
		Predicted: req.Predicted,
		Actual:    req.Actual,
	})

	return xhttp.SuccessResponse(c, map[string]any{
		"weights": h.tracker.Weights(req.CollectionID),
	})
}

// EvaluateRetraining checks every trigger condition for one model and returns
// the union of the triggers that fired. An empty list means no retraining is
// needed.
func (h *LifecycleEchoHandler) EvaluateRetraining(c echo.Context) error {
	req := &models.RetrainingEvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	triggers := h.manager.Evaluate(c.Request().Context(), req.ModelID)
	if triggers == nil {
		triggers = []models.RetrainingTrigger{}
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"model_id": req.ModelID,
		"triggers": triggers,
	})
}
