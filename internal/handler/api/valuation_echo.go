package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	models "NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/repository"
	"NFTAppraiser/internal/usecase"
	xhttp "NFTAppraiser/pkg/http"
	xlogger "NFTAppraiser/pkg/logger"
)

// ValuationEchoHandler exposes the ensemble prediction and its derived views.
type ValuationEchoHandler struct {
	logger    *xlogger.Logger
	valuation *usecase.ValuationService
}

func NewValuationEchoHandler(logger *xlogger.Logger, valuation *usecase.ValuationService) *ValuationEchoHandler {
	return &ValuationEchoHandler{logger: logger, valuation: valuation}
}

func (h *ValuationEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/valuation")
	g.POST("", h.Report)
	g.POST("/fairvalue", h.FairValue)
	g.POST("/trend", h.Trend)
	g.POST("/assessment", h.Assessment)
	g.POST("/volatility", h.Volatility)
	g.POST("/confidence", h.Confidence)
}

func (h *ValuationEchoHandler) Report(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.Report(c.Request().Context(), req.CollectionID, req.TokenID, req.Category, req.CurrentPrice)
	if err != nil {
		h.logger.Error("valuation report error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ValuationEchoHandler) FairValue(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.FairValue(c.Request().Context(), req.CollectionID, req.TokenID, req.Category)
	if err != nil {
		h.logger.Error("fairvalue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ValuationEchoHandler) Trend(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.Trend(c.Request().Context(), req.CollectionID, req.TokenID, req.Category)
	if err != nil {
		h.logger.Error("trend error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ValuationEchoHandler) Assessment(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.Assessment(c.Request().Context(), req.CollectionID, req.TokenID, req.Category, req.CurrentPrice)
	if err != nil {
		h.logger.Error("assessment error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ValuationEchoHandler) Volatility(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.Volatility(c.Request().Context(), req.CollectionID, req.TokenID, req.Category)
	if err != nil {
		h.logger.Error("volatility error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ValuationEchoHandler) Confidence(c echo.Context) error {
	req := &models.ValuationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.valuation.Confidence(c.Request().Context(), req.CollectionID, req.TokenID, req.Category)
	if err != nil {
		h.logger.Error("confidence error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// mapValuationError translates usecase and repository sentinels into typed
// app errors so AppErrorResponse picks the right status.
func mapValuationError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, usecase.ErrNoPredictions):
		return xhttp.InternalError("no model produced a usable prediction")
	default:
		return err
	}
}
