package api

import (
	"context"
	"net/http"
	"time"

	"PriceCast/internal/domain/models"
	icache "PriceCast/internal/service/cache"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

type (
	Forecaster interface {
		Forecast(ctx context.Context, p usecase.ForecastParams) (*models.Forecast, error)
	}
	TrainRunner interface {
		Run(ctx context.Context, cmd models.TrainCommand) (*models.TrainResult, error)
	}
	Searcher interface {
		Search(ctx context.Context, query string, limit int) ([]models.SymbolMatch, error)
	}
	Historian interface {
		History(ctx context.Context, p usecase.HistoryParams) (*usecase.HistoryResult, error)
	}
	ModelLister interface {
		List(ctx context.Context) ([]string, error)
	}
	// HealthCheck reports whether one dependency is usable.
	HealthCheck func(ctx context.Context) error
)

// Deps wires ForecastHandler. Queue, Cache and Checks are optional.
type Deps struct {
	Logger     *xlogger.Logger
	Forecaster Forecaster
	Training   TrainRunner
	Search     Searcher
	Bars       Historian
	Models     ModelLister
	Queue      queue.Publisher
	Cache      *icache.ForecastCache
	Checks     map[string]HealthCheck
}

// ForecastHandler serves the JSON API.
type ForecastHandler struct {
	Deps
}

func NewForecastHandler(d Deps) *ForecastHandler {
	if d.Logger == nil {
		d.Logger = xlogger.Nop()
	}
	return &ForecastHandler{Deps: d}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/search", h.SearchSymbols)
	g.GET("/bars", h.History)
	g.GET("/models", h.ListModels)
	g.POST("/models/:symbol/train", h.Train)
	g.GET("/forecast", h.Forecast)
	e.GET("/healthz", h.Health)
}

func (h *ForecastHandler) SearchSymbols(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.Search.Search(c.Request().Context(), req.Query, req.Limit)
	if err != nil {
		return h.fail(c, "search", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *ForecastHandler) History(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := usecase.ParseDay(req.From)
	if err != nil {
		return h.fail(c, "bars", err)
	}
	to, err := usecase.ParseDay(req.To)
	if err != nil {
		return h.fail(c, "bars", err)
	}
	res, err := h.Bars.History(c.Request().Context(), usecase.HistoryParams{Symbol: req.Symbol, From: from, To: to})
	if err != nil {
		return h.fail(c, "bars", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) ListModels(c echo.Context) error {
	syms, err := h.Models.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "models", err)
	}
	return xhttp.ListResponse(c, syms, int64(len(syms)))
}

type trainAccepted struct {
	JobID  string `json:"job_id"`
	Symbol string `json:"symbol"`
}

func (h *ForecastHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cmd := models.TrainCommand{Symbol: req.Symbol, From: req.From, To: req.To}
	ctx := c.Request().Context()

	if req.Async {
		if h.Queue == nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("asynchronous training is not enabled"))
		}
		id, err := h.Queue.Enqueue(ctx, usecase.TrainJobType, cmd)
		if err != nil {
			return h.fail(c, "train", err)
		}
		h.Logger.Info("training queued", xlogger.String("symbol", cmd.Symbol), xlogger.String("job_id", id))
		return xhttp.AcceptedResponse(c, trainAccepted{JobID: id, Symbol: cmd.Symbol})
	}

	res, err := h.Training.Run(ctx, cmd)
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if fc, ok := h.Cache.Get(ctx, req.Symbol, req.Days); ok {
		c.Response().Header().Set("X-Cache", "hit")
		return xhttp.SuccessResponse(c, fc)
	}
	fc, err := h.Forecaster.Forecast(ctx, usecase.ForecastParams{Symbol: req.Symbol, HorizonDays: req.Days})
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	h.Cache.Set(ctx, fc)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, fc)
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *ForecastHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	rep := healthReport{Status: "ok", Checks: make(map[string]string, len(h.Checks))}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			rep.Status = "degraded"
			rep.Checks[name] = err.Error()
			continue
		}
		rep.Checks[name] = "ok"
	}
	code := http.StatusOK
	if rep.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, rep)
}

func (h *ForecastHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.Logger.Error(op+" failed",
			xlogger.String("path", c.Request().URL.Path),
			xlogger.Any("query", c.QueryParams()),
			xlogger.Error(err))
	} else {
		h.Logger.Debug(op+" rejected", xlogger.Int("status", appErr.Status), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
