package api

import (
	"github.com/labstack/echo/v4"

	"NFTAppraiser/internal/backtest"
	models "NFTAppraiser/internal/domain/models"
	xhttp "NFTAppraiser/pkg/http"
	xlogger "NFTAppraiser/pkg/logger"
	"NFTAppraiser/pkg/util"
)

// BacktestEchoHandler exposes the historical simulation suite.
type BacktestEchoHandler struct {
	logger *xlogger.Logger
	runner *backtest.Runner
}

func NewBacktestEchoHandler(logger *xlogger.Logger, runner *backtest.Runner) *BacktestEchoHandler {
	return &BacktestEchoHandler{logger: logger, runner: runner}
}

func (h *BacktestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/backtest")
	g.POST("/simulation", h.Simulation)
	g.POST("/walkforward", h.WalkForward)
	g.POST("/stress", h.Stress)
	g.POST("/compare", h.Compare)
}

func (h *BacktestEchoHandler) Simulation(c echo.Context) error {
	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period, ok := parsePeriod(req.From, req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "from/to must be RFC3339 timestamps with from before to")
	}

	res, err := h.runner.RunHistoricalSimulation(c.Request().Context(), req.CollectionID, req.ModelVersion, period)
	if err != nil {
		h.logger.Error("simulation error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestEchoHandler) WalkForward(c echo.Context) error {
	req := &models.WalkForwardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period, ok := parsePeriod(req.From, req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "from/to must be RFC3339 timestamps with from before to")
	}

	window := util.Days(req.WindowDays)
	step := util.Days(req.StepDays)
	res, err := h.runner.RunWalkForwardTest(c.Request().Context(), req.CollectionID, req.ModelVersion, period.From, period.To, window, step)
	if err != nil {
		h.logger.Error("walkforward error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"windows": len(res),
		"results": res,
	})
}

func (h *BacktestEchoHandler) Stress(c echo.Context) error {
	req := &models.StressTestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period, ok := parsePeriod(req.From, req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "from/to must be RFC3339 timestamps with from before to")
	}
	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		scenarios = []string{
			backtest.ScenarioCrash,
			backtest.ScenarioRally,
			backtest.ScenarioVolSpike,
			backtest.ScenarioLiquidityDrain,
		}
	}

	res, err := h.runner.RunStressTest(c.Request().Context(), req.CollectionID, req.ModelVersion, period, scenarios)
	if err != nil {
		h.logger.Error("stress test error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestEchoHandler) Compare(c echo.Context) error {
	req := &models.CompareVersionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period, ok := parsePeriod(req.From, req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "from/to must be RFC3339 timestamps with from before to")
	}

	res, err := h.runner.CompareModelVersions(c.Request().Context(), req.CollectionID, req.ModelVersions, period)
	if err != nil {
		h.logger.Error("compare versions error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapValuationError(err))
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"best":    bestVersion(res),
		"results": res,
	})
}

// bestVersion picks the lowest-MAPE result; ties go to the earlier entry.
func bestVersion(results []*models.TestResult) string {
	best := ""
	bestMAPE := 0.0
	for _, r := range results {
		m := r.Metrics["mape"]
		if best == "" || m < bestMAPE {
			best = r.ModelVersion
			bestMAPE = m
		}
	}
	return best
}

func parsePeriod(from, to string) (models.TestPeriod, bool) {
	f, ok := util.ParseTime(from)
	if !ok {
		return models.TestPeriod{}, false
	}
	t, ok := util.ParseTime(to)
	if !ok || !f.Before(t) {
		return models.TestPeriod{}, false
	}
	return models.TestPeriod{From: f, To: t}, true
}
