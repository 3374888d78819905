package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Router aggregates every API handler behind one RegisterRoutes entry point.
type Router struct {
	Valuation  *ValuationEchoHandler
	Lifecycle  *LifecycleEchoHandler
	Backtest   *BacktestEchoHandler
	Evaluation *EvaluationEchoHandler

	// Healthz is called on GET /healthz; nil means always healthy.
	Healthz func() error
}

func NewRouter(v *ValuationEchoHandler, l *LifecycleEchoHandler, b *BacktestEchoHandler, e *EvaluationEchoHandler) *Router {
	return &Router{Valuation: v, Lifecycle: l, Backtest: b, Evaluation: e}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.Valuation.RegisterRoutes(e)
	r.Lifecycle.RegisterRoutes(e)
	r.Backtest.RegisterRoutes(e)
	r.Evaluation.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		if r.Healthz != nil {
			if err := r.Healthz(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
