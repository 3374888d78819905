package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "NFTAppraiser/internal/domain/models"
	domrepo "NFTAppraiser/internal/domain/repository"
	"NFTAppraiser/internal/evaluation"
	xhttp "NFTAppraiser/pkg/http"
	xlogger "NFTAppraiser/pkg/logger"
)

// EvaluationEchoHandler runs stratified accuracy evaluation over submitted
// prediction/outcome pairs.
type EvaluationEchoHandler struct {
	logger    *xlogger.Logger
	evaluator *evaluation.Evaluator
	store     domrepo.CollectionStore
}

func NewEvaluationEchoHandler(logger *xlogger.Logger, evaluator *evaluation.Evaluator, store domrepo.CollectionStore) *EvaluationEchoHandler {
	return &EvaluationEchoHandler{logger: logger, evaluator: evaluator, store: store}
}

func (h *EvaluationEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/evaluation/run", h.Run)
}

func (h *EvaluationEchoHandler) Run(c echo.Context) error {
	req := &models.EvaluationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if len(req.Predictions) != len(req.Actuals) {
		return xhttp.BadRequestResponse(c, "predictions and actuals must have equal length")
	}
	if len(req.HorizonDays) > 0 && len(req.HorizonDays) != len(req.Predictions) {
		return xhttp.BadRequestResponse(c, "horizon_days length must match predictions")
	}
	if len(req.Categories) > 0 && len(req.Categories) != len(req.Predictions) {
		return xhttp.BadRequestResponse(c, "categories length must match predictions")
	}

	samples := make([]evaluation.Sample, len(req.Predictions))
	for i := range req.Predictions {
		samples[i] = evaluation.Sample{
			Predicted: req.Predictions[i],
			Actual:    req.Actuals[i],
		}
		if len(req.HorizonDays) > 0 {
			samples[i].HorizonDays = req.HorizonDays[i]
		}
		if len(req.Categories) > 0 {
			samples[i].Category = req.Categories[i]
		}
	}

	res := h.evaluator.EvaluateBins(samples, h.brackets(c, req.CollectionID), req.Bins)
	return xhttp.SuccessResponse(c, res)
}

// brackets derives price-bracket boundaries from the collection's stats,
// falling back to sample-free defaults if the collection cannot be loaded.
func (h *EvaluationEchoHandler) brackets(c echo.Context, collectionID string) evaluation.PriceBrackets {
	col, err := h.store.GetCollection(c.Request().Context(), collectionID)
	if err != nil {
		h.logger.Warn("evaluation brackets fallback", xlogger.Error(err),
			xlogger.String("collection_id", collectionID))
		return evaluation.PriceBrackets{}
	}
	avg, _ := col.AvgPriceSince(time.Time{})
	maxPrice := 0.0
	for _, s := range col.Sales {
		if s.Price > maxPrice {
			maxPrice = s.Price
		}
	}
	return evaluation.PriceBrackets{Floor: col.FloorPrice, Avg: avg, Max: maxPrice}
}
