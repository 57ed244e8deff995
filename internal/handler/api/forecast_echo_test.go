package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	icache "PriceCast/internal/service/cache"
	"PriceCast/internal/usecase"
	pkgcache "PriceCast/pkg/cache"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecaster struct {
	calls int
	last  usecase.ForecastParams
	err   error
}

func (s *stubForecaster) Forecast(_ context.Context, p usecase.ForecastParams) (*models.Forecast, error) {
	s.calls++
	s.last = p
	if s.err != nil {
		return nil, s.err
	}
	last := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fc := &models.Forecast{Symbol: p.Symbol, LastKnownDate: last, Source: models.SourceStored}
	for k := 1; k <= p.HorizonDays; k++ {
		fc.Points = append(fc.Points, models.ForecastPoint{Date: last.AddDate(0, 0, k), Close: 10})
	}
	return fc, nil
}

type stubTraining struct {
	cmd models.TrainCommand
	err error
}

func (s *stubTraining) Run(_ context.Context, cmd models.TrainCommand) (*models.TrainResult, error) {
	s.cmd = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &models.TrainResult{Model: models.ModelInfo{Symbol: cmd.Symbol, Lookback: 10}, MSE: 0.01}, nil
}

type stubQueue struct {
	msgType string
	payload any
}

func (q *stubQueue) Enqueue(_ context.Context, msgType string, payload any) (string, error) {
	q.msgType, q.payload = msgType, payload
	return "job-1", nil
}

type stubSearch struct{ err error }

func (s stubSearch) Search(_ context.Context, q string, limit int) ([]models.SymbolMatch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.SymbolMatch{{Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ"}}, nil
}

type stubBars struct{ got usecase.HistoryParams }

func (s *stubBars) History(_ context.Context, p usecase.HistoryParams) (*usecase.HistoryResult, error) {
	s.got = p
	return &usecase.HistoryResult{Symbol: p.Symbol, From: p.From, To: p.To}, nil
}

type stubModels []string

func (s stubModels) List(context.Context) ([]string, error) { return s, nil }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, h *ForecastHandler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if strings.HasPrefix(target, "/api") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestForecastEndpoint(t *testing.T) {
	fc := &stubForecaster{}
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mc.Close()
	h := NewForecastHandler(Deps{Forecaster: fc, Cache: icache.NewForecastCache(mc, time.Minute, nil)})

	rec, env := do(t, h, http.MethodGet, "/api/forecast?symbol=AAPL&days=3")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Forecast
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got.Points, 3)
	assert.Equal(t, usecase.ForecastParams{Symbol: "AAPL", HorizonDays: 3}, fc.last)

	rec, _ = do(t, h, http.MethodGet, "/api/forecast?symbol=AAPL&days=3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, fc.calls)

	_, _ = do(t, h, http.MethodGet, "/api/forecast?symbol=MSFT")
	assert.Equal(t, 30, fc.last.HorizonDays)
}

func TestForecastEndpointValidation(t *testing.T) {
	h := NewForecastHandler(Deps{Forecaster: &stubForecaster{}})
	for _, target := range []string{"/api/forecast", "/api/forecast?symbol=X&days=400", "/api/forecast?symbol=X&days=abc"} {
		rec, _ := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestForecastEndpointErrorMapping(t *testing.T) {
	cases := map[error]int{
		errs.ModelNotFound("ZZZ"):                       http.StatusNotFound,
		errs.InsufficientData("too short"):              http.StatusUnprocessableEntity,
		errs.DataUnavailable(errors.New("503"), "down"): http.StatusBadGateway,
		errs.InvalidInput("bad"):                        http.StatusBadRequest,
		errors.New("boom"):                              http.StatusInternalServerError,
	}
	for err, code := range cases {
		h := NewForecastHandler(Deps{Forecaster: &stubForecaster{err: err}})
		rec, env := do(t, h, http.MethodGet, "/api/forecast?symbol=ZZZ&days=5")
		assert.Equal(t, code, rec.Code, err.Error())
		assert.Equal(t, code, env.Status)
	}
}

func TestTrainEndpoint(t *testing.T) {
	tr := &stubTraining{}
	h := NewForecastHandler(Deps{Training: tr})

	rec, env := do(t, h, http.MethodPost, "/api/models/BRK.B/train?from=2024-01-01&to=2024-12-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TrainCommand{Symbol: "BRK.B", From: "2024-01-01", To: "2024-12-31"}, tr.cmd)
	var res models.TrainResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 0.01, res.MSE)

	rec, _ = do(t, h, http.MethodPost, "/api/models/X/train?from=01-01-2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/models/X/train?async=true")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainEndpointAsync(t *testing.T) {
	q := &stubQueue{}
	tr := &stubTraining{}
	h := NewForecastHandler(Deps{Training: tr, Queue: q})

	rec, env := do(t, h, http.MethodPost, "/api/models/NVDA/train?async=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","symbol":"NVDA"}`, string(env.Data))
	assert.Equal(t, usecase.TrainJobType, q.msgType)
	assert.Equal(t, models.TrainCommand{Symbol: "NVDA"}, q.payload)
	assert.Empty(t, tr.cmd.Symbol)
}

func TestSearchBarsModelsEndpoints(t *testing.T) {
	bars := &stubBars{}
	h := NewForecastHandler(Deps{Search: stubSearch{}, Bars: bars, Models: stubModels{"AAPL", "MSFT"}})

	rec, env := do(t, h, http.MethodGet, "/api/search?q=apple")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	rec, _ = do(t, h, http.MethodGet, "/api/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/bars?symbol=AAPL&from=2024-01-01&to=2024-02-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), bars.got.To)

	rec, env = do(t, h, http.MethodGet, "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":["AAPL","MSFT"],"total":2}`, string(env.Data))

	h = NewForecastHandler(Deps{Search: stubSearch{err: errs.DataUnavailable(errors.New("x"), "search")}})
	rec, _ = do(t, h, http.MethodGet, "/api/search?q=apple")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewForecastHandler(Deps{Checks: map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	}})
	rec, _ := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.Checks["clickhouse"] = func(context.Context) error { return errors.New("down") }
	rec, _ = do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clickhouse":"down"`)
}
