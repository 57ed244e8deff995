package usecase

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/scaler"
	"PriceCast/internal/services/window"
	xlogger "PriceCast/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxHorizon caps how many days ahead a forecast may go.
const DefaultMaxHorizon = 365

type ForecastParams struct {
	Symbol      string
	HorizonDays int
	// Bars is optional history. When present it feeds the forecast and, if no
	// model is stored yet, trains one first.
	Bars []models.PriceBar
}

// artifactPlan is the outcome of deciding where the model comes from.
type artifactPlan int

const (
	planUseStored artifactPlan = iota
	planTrainOnDemand
	planNotFound
)

func (p artifactPlan) String() string {
	switch p {
	case planUseStored:
		return "use_stored"
	case planTrainOnDemand:
		return "train_on_demand"
	default:
		return "not_found"
	}
}

func decidePlan(found, haveBars bool) artifactPlan {
	switch {
	case found:
		return planUseStored
	case haveBars:
		return planTrainOnDemand
	default:
		return planNotFound
	}
}

// Forecaster produces multi-step autoregressive forecasts from stored models.
//
// Each step predicts the next scaled close from the current window, then
// appends a synthetic row that copies the latest row with only the close
// replaced by the prediction. Other features of the synthetic row, including
// the moving averages and returns, are carried forward unchanged.
type Forecaster struct {
	registry *ModelRegistry
	trainer  *Trainer
	market   domrepo.MarketData
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	now      func() time.Time
	group    singleflight.Group

	historyDays int
	maxHorizon  int
}

// ForecasterOption configures a Forecaster.
type ForecasterOption func(*Forecaster)

// WithForecastEvents publishes forecast.generated events to p.
func WithForecastEvents(p domrepo.EventPublisher) ForecasterOption {
	return func(f *Forecaster) {
		if p != nil {
			f.events = p
		}
	}
}

// WithForecastMetrics records forecast metrics to m.
func WithForecastMetrics(m domrepo.Metrics) ForecasterOption {
	return func(f *Forecaster) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithForecastLogger sets the forecaster logger.
func WithForecastLogger(l *xlogger.Logger) ForecasterOption {
	return func(f *Forecaster) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithHistoryDays sets how many calendar days of history seed a forecast.
func WithHistoryDays(days int) ForecasterOption {
	return func(f *Forecaster) {
		if days > 0 {
			f.historyDays = days
		}
	}
}

// WithMaxHorizon caps the forecast horizon in days.
func WithMaxHorizon(days int) ForecasterOption {
	return func(f *Forecaster) {
		if days > 0 {
			f.maxHorizon = days
		}
	}
}

// WithForecastClock overrides the clock used for the history window.
func WithForecastClock(now func() time.Time) ForecasterOption {
	return func(f *Forecaster) { f.now = now }
}

// NewForecaster creates a new Forecaster instance.
func NewForecaster(registry *ModelRegistry, trainer *Trainer, market domrepo.MarketData, opts ...ForecasterOption) *Forecaster {
	f := &Forecaster{
		registry:    registry,
		trainer:     trainer,
		market:      market,
		events:      nopPublisher{},
		metrics:     nopMetrics{},
		logger:      xlogger.Nop(),
		now:         time.Now,
		historyDays: DefaultHistoryDays,
		maxHorizon:  DefaultMaxHorizon,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Forecast predicts the close for each of the next HorizonDays calendar days
// after the last known bar.
func (f *Forecaster) Forecast(ctx context.Context, p ForecastParams) (*models.Forecast, error) {
	start := time.Now()
	fc, err := f.forecast(ctx, p)
	if err != nil {
		f.metrics.RecordError("forecast", errs.KindOf(err))
		f.logger.Warn("forecast failed",
			xlogger.String("symbol", p.Symbol),
			xlogger.Int("horizon", p.HorizonDays),
			xlogger.Error(err),
		)
		return nil, err
	}
	f.metrics.RecordForecast(p.Symbol, fc.Source, p.HorizonDays, time.Since(start).Seconds())
	f.logger.Info("forecast generated",
		xlogger.String("symbol", p.Symbol),
		xlogger.String("source", string(fc.Source)),
		xlogger.Int("horizon", p.HorizonDays),
		xlogger.Time("last_known", fc.LastKnownDate),
	)
	if perr := f.events.Publish(ctx, newEvent(models.EventForecastGenerated, p.Symbol, fc.GeneratedAt, fc)); perr != nil {
		f.logger.Warn("publish forecast.generated failed", xlogger.String("symbol", p.Symbol), xlogger.Error(perr))
	}
	return fc, nil
}

func (f *Forecaster) forecast(ctx context.Context, p ForecastParams) (*models.Forecast, error) {
	if p.Symbol == "" {
		return nil, errs.InvalidInput("symbol is required")
	}
	if p.HorizonDays < 1 || p.HorizonDays > f.maxHorizon {
		return nil, errs.InvalidInput("horizon must be between 1 and %d days, got %d", f.maxHorizon, p.HorizonDays)
	}

	artifact, source, err := f.resolveArtifact(ctx, p)
	if err != nil {
		return nil, err
	}

	bars := p.Bars
	if len(bars) == 0 {
		to := models.Day(f.now())
		bars, err = loadHistory(ctx, f.market, p.Symbol, to.AddDate(0, 0, -f.historyDays), to)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lookback := artifact.Lookback
	if lookback <= 0 {
		lookback = window.DefaultLookback
	}
	rows := features.Compute(bars)
	if len(rows) < lookback {
		return nil, errs.InsufficientData("%d bars give %d feature rows, need at least %d to seed the forecast", len(bars), len(rows), lookback)
	}

	scaled := scaler.Apply(rows, artifact.Scaler)
	preds, err := rollForward(ctx, artifact.Regressor, window.Window(scaled[len(scaled)-lookback:]), p.HorizonDays)
	if err != nil {
		return nil, err
	}
	closes, err := scaler.Invert(preds, artifact.Scaler, models.ColClose)
	if err != nil {
		return nil, err
	}

	last := models.Day(rows[len(rows)-1].Date)
	points := make([]models.ForecastPoint, len(closes))
	for k, c := range closes {
		points[k] = models.ForecastPoint{Date: last.AddDate(0, 0, k+1), Close: c}
	}
	return &models.Forecast{
		Symbol:        p.Symbol,
		LastKnownDate: last,
		GeneratedAt:   f.now().UTC(),
		Source:        source,
		Points:        points,
	}, nil
}

func (f *Forecaster) resolveArtifact(ctx context.Context, p ForecastParams) (*models.ModelArtifact, models.ForecastSource, error) {
	stored, err := f.registry.Load(ctx, p.Symbol)
	if err != nil && !errors.Is(err, errs.ErrModelNotFound) {
		return nil, "", err
	}

	plan := decidePlan(err == nil, len(p.Bars) > 0)
	f.logger.Debug("artifact plan", xlogger.String("symbol", p.Symbol), xlogger.String("plan", plan.String()))

	switch plan {
	case planUseStored:
		return stored, models.SourceStored, nil
	case planTrainOnDemand:
		f.logger.Info("no stored model, training on demand", xlogger.String("symbol", p.Symbol), xlogger.Int("bars", len(p.Bars)))
		// the shared run outlives any single caller; each caller still
		// honours its own cancellation while waiting
		ch := f.group.DoChan(flightKey(p.Symbol, p.Bars), func() (interface{}, error) {
			a, _, err := f.trainer.Train(context.WithoutCancel(ctx), p.Symbol, p.Bars)
			return a, err
		})
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, "", res.Err
			}
			return res.Val.(*models.ModelArtifact), models.SourceTrained, nil
		}
	default:
		return nil, "", errs.ModelNotFound(p.Symbol)
	}
}

// rollForward runs the autoregressive loop and returns scaled predictions.
func rollForward(ctx context.Context, reg models.Regressor, w window.Window, horizon int) ([]float64, error) {
	preds := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := reg.Predict(window.Flatten(w))
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("regressor returned %v at step %d", y, k+1)
		}
		preds[k] = y

		next := w[len(w)-1]
		next[models.ColClose] = y
		w = window.Slide(w, next)
	}
	return preds, nil
}

// flightKey identifies an on-demand training request by symbol and history.
func flightKey(symbol string, bars []models.PriceBar) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, b := range bars {
		binary.LittleEndian.PutUint64(buf[:], uint64(b.Date.Unix()))
		h.Write(buf[:])
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(b.Volume))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%s/%d/%x", symbol, len(bars), h.Sum64())
}
