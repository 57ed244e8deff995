package usecase

import (
	"context"
	"testing"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainStoresArtifact(t *testing.T) {
	reg := newMemoryRegistry(t)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := &recordingPublisher{}
	metrics := &recordingMetrics{}
	tr := NewTrainer(smallForest(), reg,
		WithTrainerClock(fixedClock(at)),
		WithTrainerEvents(pub),
		WithTrainerMetrics(metrics),
	)

	// 120 bars -> 101 feature rows -> 91 windows, 19 held out.
	a, mse, err := tr.Train(context.Background(), "AAPL", linearBars(120, 10, 40))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", a.Symbol)
	assert.Equal(t, 10, a.Lookback)
	assert.Equal(t, 72, a.TrainSamples)
	assert.Equal(t, 19, a.TestSamples)
	assert.Equal(t, at, a.TrainedAt)
	assert.Equal(t, mse, a.EvalMSE)
	assert.GreaterOrEqual(t, mse, 0.0)

	loaded, err := reg.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, a.Info(), loaded.Info())
	assert.Equal(t, a.Scaler, loaded.Scaler)

	assert.Equal(t, []string{models.EventModelTrained}, pub.Types())
	assert.Equal(t, 1, metrics.trains)
}

func TestTrainMinimumRows(t *testing.T) {
	tr := NewTrainer(smallForest(), newMemoryRegistry(t))
	ctx := context.Background()

	// 29 bars -> 10 rows, below lookback+1.
	_, _, err := tr.Train(ctx, "AAA", linearBars(29, 1, 2))
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	// 30 bars -> one window, which the split holds out entirely.
	_, _, err = tr.Train(ctx, "AAA", linearBars(30, 1, 2))
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	a, _, err := tr.Train(ctx, "AAA", linearBars(31, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, a.TrainSamples)
	assert.Equal(t, 1, a.TestSamples)
}

func TestTrainRejectsEmptySymbol(t *testing.T) {
	tr := NewTrainer(smallForest(), newMemoryRegistry(t))
	_, _, err := tr.Train(context.Background(), "", linearBars(60, 1, 2))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestTrainOverwritesPrevious(t *testing.T) {
	reg := newMemoryRegistry(t)
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := first
	tr := NewTrainer(smallForest(), reg, WithTrainerClock(func() time.Time { return now }))

	_, _, err := tr.Train(context.Background(), "AAA", linearBars(60, 1, 2))
	require.NoError(t, err)
	now = first.Add(24 * time.Hour)
	_, _, err = tr.Train(context.Background(), "AAA", linearBars(90, 5, 9))
	require.NoError(t, err)

	a, err := reg.Load(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, now, a.TrainedAt)
	assert.InDelta(t, 9.0, a.Scaler.Max[models.ColClose], 1e-9)

	syms, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, syms)
}

func TestTrainDeterministic(t *testing.T) {
	bars := linearBars(100, 30, 60)
	_, m1, err := NewTrainer(smallForest(), newMemoryRegistry(t)).Train(context.Background(), "D", bars)
	require.NoError(t, err)
	_, m2, err := NewTrainer(smallForest(), newMemoryRegistry(t)).Train(context.Background(), "D", bars)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestTrainCustomLookback(t *testing.T) {
	tr := NewTrainer(smallForest(), newMemoryRegistry(t), WithLookback(5), WithTestFraction(0.5))
	assert.Equal(t, 5, tr.Lookback())

	// 40 bars -> 21 rows -> 16 windows, half held out.
	a, _, err := tr.Train(context.Background(), "L5", linearBars(40, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, a.Lookback)
	assert.Equal(t, 8, a.TrainSamples)
	assert.Equal(t, 8, a.TestSamples)
}

func TestTrainRecordsFailure(t *testing.T) {
	metrics := &recordingMetrics{}
	tr := NewTrainer(smallForest(), newMemoryRegistry(t), WithTrainerMetrics(metrics))
	_, _, err := tr.Train(context.Background(), "AAA", linearBars(10, 1, 2))
	require.Error(t, err)
	assert.Equal(t, []string{"train:insufficient_data"}, metrics.errors)
	assert.Zero(t, metrics.trains)
}

func TestMeanSquaredError(t *testing.T) {
	assert.Zero(t, meanSquaredError(constRegressor(1), nil, nil))
	X := make([]window.Window, 2)
	assert.InDelta(t, 0.15625, meanSquaredError(constRegressor(0.5), X, []float64{0.25, 1}), 1e-12)
}
