package metrics

import (
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainDuration    *prometheus.HistogramVec
	evalMSE          *prometheus.GaugeVec
	forecastsTotal   *prometheus.CounterVec
	forecastDuration *prometheus.HistogramVec
	forecastHorizon  prometheus.Histogram
	errorsTotal      *prometheus.CounterVec
	fetchedBars      *prometheus.CounterVec
}

// New registers the collectors with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		trainDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_train_duration_seconds",
				Help:    "Duration of model training runs",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"symbol"},
		),
		evalMSE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_model_eval_mse",
				Help: "Held-out mean squared error of the latest model, in scaled units",
			},
			[]string{"symbol"},
		),
		forecastsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_forecasts_total",
				Help: "Forecasts produced, by model source",
			},
			[]string{"source"},
		),
		forecastDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_duration_seconds",
				Help:    "Duration of forecast requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		forecastHorizon: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_horizon_days",
				Help:    "Requested forecast horizons",
				Buckets: []float64{1, 7, 14, 30, 60, 90, 180, 365},
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Failed operations by error kind",
			},
			[]string{"op", "kind"},
		),
		fetchedBars: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_fetched_bars_total",
				Help: "Daily bars loaded, by source",
			},
			[]string{"source"},
		),
	}
}

func (r *Recorder) RecordTrain(symbol string, seconds, mse float64) {
	r.trainDuration.WithLabelValues(symbol).Observe(seconds)
	r.evalMSE.WithLabelValues(symbol).Set(mse)
}

func (r *Recorder) RecordForecast(_ string, source models.ForecastSource, horizon int, seconds float64) {
	r.forecastsTotal.WithLabelValues(string(source)).Inc()
	r.forecastDuration.WithLabelValues(string(source)).Observe(seconds)
	r.forecastHorizon.Observe(float64(horizon))
}

func (r *Recorder) RecordError(op, kind string) {
	r.errorsTotal.WithLabelValues(op, kind).Inc()
}

func (r *Recorder) RecordFetch(source string, bars int) {
	r.fetchedBars.WithLabelValues(source).Add(float64(bars))
}

var _ domrepo.Metrics = (*Recorder)(nil)
