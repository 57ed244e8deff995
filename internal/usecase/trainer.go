package usecase

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/scaler"
	"PriceCast/internal/services/window"
	xlogger "PriceCast/pkg/logger"
)

// Trainer runs the training pipeline for one symbol and stores the artifact.
type Trainer struct {
	fitter   domsvc.RegressorTrainer
	registry *ModelRegistry
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	now      func() time.Time

	lookback     int
	testFraction float64
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithTrainerEvents publishes model.trained events to p.
func WithTrainerEvents(p domrepo.EventPublisher) TrainerOption {
	return func(t *Trainer) {
		if p != nil {
			t.events = p
		}
	}
}

// WithTrainerMetrics records training metrics to m.
func WithTrainerMetrics(m domrepo.Metrics) TrainerOption {
	return func(t *Trainer) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithTrainerLogger sets the trainer logger.
func WithTrainerLogger(l *xlogger.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithLookback sets the number of past rows per window.
func WithLookback(n int) TrainerOption {
	return func(t *Trainer) {
		if n > 0 {
			t.lookback = n
		}
	}
}

// WithTestFraction sets the share of windows held out for evaluation.
func WithTestFraction(f float64) TrainerOption {
	return func(t *Trainer) {
		if f > 0 && f < 1 {
			t.testFraction = f
		}
	}
}

// WithTrainerClock overrides the clock stamped on artifacts.
func WithTrainerClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) { t.now = now }
}

// NewTrainer creates a new Trainer instance.
func NewTrainer(fitter domsvc.RegressorTrainer, registry *ModelRegistry, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		fitter:       fitter,
		registry:     registry,
		events:       nopPublisher{},
		metrics:      nopMetrics{},
		logger:       xlogger.Nop(),
		now:          time.Now,
		lookback:     window.DefaultLookback,
		testFraction: window.DefaultTestFraction,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Trainer) Lookback() int { return t.lookback }

// Train fits a model on bars, evaluates it on the most recent windows and
// saves it under symbol, replacing any previous artifact. It returns the
// artifact and the held-out MSE in scaled units.
func (t *Trainer) Train(ctx context.Context, symbol string, bars []models.PriceBar) (*models.ModelArtifact, float64, error) {
	start := time.Now()
	a, mse, err := t.train(ctx, symbol, bars)
	if err != nil {
		t.metrics.RecordError("train", errs.KindOf(err))
		t.logger.Warn("training failed", xlogger.String("symbol", symbol), xlogger.Int("bars", len(bars)), xlogger.Error(err))
		return nil, 0, err
	}
	took := time.Since(start)
	t.metrics.RecordTrain(symbol, took.Seconds(), mse)
	t.logger.Info("model trained",
		xlogger.String("symbol", symbol),
		xlogger.Int("train_samples", a.TrainSamples),
		xlogger.Int("test_samples", a.TestSamples),
		xlogger.Float64("mse", mse),
		xlogger.Duration("took_ms", took),
	)
	if perr := t.events.Publish(ctx, newEvent(models.EventModelTrained, symbol, a.TrainedAt, a.Info())); perr != nil {
		t.logger.Warn("publish model.trained failed", xlogger.String("symbol", symbol), xlogger.Error(perr))
	}
	return a, mse, nil
}

func (t *Trainer) train(ctx context.Context, symbol string, bars []models.PriceBar) (*models.ModelArtifact, float64, error) {
	if symbol == "" {
		return nil, 0, errs.InvalidInput("symbol is required")
	}

	rows := features.Compute(bars)
	if len(rows) < t.lookback+1 {
		return nil, 0, errs.InsufficientData("%d bars give %d feature rows, need at least %d", len(bars), len(rows), t.lookback+1)
	}

	st, err := scaler.Fit(rows)
	if err != nil {
		return nil, 0, err
	}
	X, y := window.Build(scaler.Apply(rows, st), t.lookback)
	split := window.ChronoSplit(X, y, t.testFraction)
	if len(split.TrainX) == 0 {
		return nil, 0, errs.InsufficientData("%d windows leave no training samples after holding out %d", len(X), len(split.TestX))
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	reg, err := t.fitter.Fit(ctx, window.FlattenAll(split.TrainX), split.TrainY)
	if err != nil {
		return nil, 0, fmt.Errorf("fit regressor: %w", err)
	}
	mse := meanSquaredError(reg, split.TestX, split.TestY)

	a := &models.ModelArtifact{
		Symbol:       symbol,
		Regressor:    reg,
		Scaler:       st,
		TrainedAt:    t.now().UTC(),
		Lookback:     t.lookback,
		EvalMSE:      mse,
		TrainSamples: len(split.TrainX),
		TestSamples:  len(split.TestX),
	}
	if err := t.registry.Save(ctx, a); err != nil {
		return nil, 0, err
	}
	return a, mse, nil
}

func meanSquaredError(reg models.Regressor, X []window.Window, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	sum := 0.0
	for i, w := range X {
		d := reg.Predict(window.Flatten(w)) - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}
