package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	icache "PriceCast/internal/service/cache"
	pkgcache "PriceCast/pkg/cache"
	pkgkafka "PriceCast/pkg/kafka"
	"PriceCast/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrainingUseCase(t *testing.T, market *fakeMarket) (*TrainingUseCase, *ModelRegistry) {
	t.Helper()
	reg := newMemoryRegistry(t)
	return NewTrainingUseCase(NewBarsUseCase(market, nil, nil, nil), NewTrainer(smallForest(), reg), nil), reg
}

// newCachedTraining returns training wired to a forecast cache holding a
// 3-day forecast for symbol.
func newCachedTraining(t *testing.T, market *fakeMarket, symbol string) (*TrainingUseCase, *icache.ForecastCache) {
	t.Helper()
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	fc := icache.NewForecastCache(mc, time.Hour, nil)

	stale := &models.Forecast{Symbol: symbol, Source: models.SourceStored}
	for k := 1; k <= 3; k++ {
		stale.Points = append(stale.Points, models.ForecastPoint{Date: baseDate.AddDate(0, 0, k), Close: 1})
	}
	fc.Set(context.Background(), stale)
	_, ok := fc.Get(context.Background(), symbol, 3)
	require.True(t, ok)

	uc := NewTrainingUseCase(NewBarsUseCase(market, nil, nil, nil), NewTrainer(smallForest(), newMemoryRegistry(t)), fc)
	return uc, fc
}

func TestTrainingRun(t *testing.T) {
	market := &fakeMarket{bars: linearBars(80, 10, 20)}
	uc, reg := newTrainingUseCase(t, market)

	res, err := uc.Run(context.Background(), models.TrainCommand{Symbol: "TSLA", From: "2024-01-01", To: "2024-03-20"})
	require.NoError(t, err)
	assert.Equal(t, "TSLA", res.Model.Symbol)
	assert.Equal(t, res.Model.EvalMSE, res.MSE)
	assert.Equal(t, baseDate, market.from)

	_, err = reg.Load(context.Background(), "TSLA")
	assert.NoError(t, err)

	_, err = uc.Run(context.Background(), models.TrainCommand{Symbol: "TSLA", From: "yesterday"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestKafkaTrainHandler(t *testing.T) {
	market := &fakeMarket{bars: linearBars(80, 10, 20)}
	uc, reg := newTrainingUseCase(t, market)
	h := NewKafkaTrainHandler("pricecast.train", uc, nil)
	assert.Equal(t, "pricecast.train", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"NVDA"}`)))
	_, err := reg.Load(context.Background(), "NVDA")
	assert.NoError(t, err)

	err = h.Handle(context.Background(), []byte(`{not json`))
	assert.True(t, pkgkafka.IsPermanent(err))

	err = h.Handle(context.Background(), []byte(`{"symbol":""}`))
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestKafkaTrainHandlerRetriesUpstreamFailures(t *testing.T) {
	uc, _ := newTrainingUseCase(t, &fakeMarket{err: errors.New("503")})
	err := NewKafkaTrainHandler("t", uc, nil).Handle(context.Background(), []byte(`{"symbol":"NVDA"}`))
	require.Error(t, err)
	assert.False(t, pkgkafka.IsPermanent(err))
	assert.ErrorIs(t, err, errs.ErrDataUnavailable)
}

func TestTrainJob(t *testing.T) {
	uc, reg := newTrainingUseCase(t, &fakeMarket{bars: linearBars(70, 3, 6)})
	job := NewTrainJob(uc, nil)
	assert.Equal(t, TrainJobType, job.Type())

	require.NoError(t, job.Handle(context.Background(), []byte(`{"symbol":"AMD"}`)))
	_, err := reg.Load(context.Background(), "AMD")
	assert.NoError(t, err)

	err = job.Handle(context.Background(), []byte(`oops`))
	assert.ErrorIs(t, err, queue.ErrDiscard)

	err = job.Handle(context.Background(), []byte(`{"symbol":"AMD","from":"2025-02-01","to":"2025-01-01"}`))
	assert.ErrorIs(t, err, queue.ErrDiscard)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestTrainJobDropsCachedForecasts(t *testing.T) {
	uc, fc := newCachedTraining(t, &fakeMarket{bars: linearBars(70, 3, 6)}, "AMD")

	require.NoError(t, NewTrainJob(uc, nil).Handle(context.Background(), []byte(`{"symbol":"AMD"}`)))
	_, ok := fc.Get(context.Background(), "AMD", 3)
	assert.False(t, ok)
}

func TestKafkaTrainHandlerDropsCachedForecasts(t *testing.T) {
	uc, fc := newCachedTraining(t, &fakeMarket{bars: linearBars(80, 10, 20)}, "NVDA")

	require.NoError(t, NewKafkaTrainHandler("t", uc, nil).Handle(context.Background(), []byte(`{"symbol":"NVDA"}`)))
	_, ok := fc.Get(context.Background(), "NVDA", 3)
	assert.False(t, ok)
}

func TestFailedTrainingKeepsCachedForecasts(t *testing.T) {
	uc, fc := newCachedTraining(t, &fakeMarket{err: errors.New("503")}, "NVDA")

	_, err := uc.Run(context.Background(), models.TrainCommand{Symbol: "NVDA"})
	require.Error(t, err)
	_, ok := fc.Get(context.Background(), "NVDA", 3)
	assert.True(t, ok)
}
