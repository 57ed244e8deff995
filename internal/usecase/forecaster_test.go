package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/repository"
	"PriceCast/internal/services/forest"
	"PriceCast/internal/services/window"
	"PriceCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newForecaster(t *testing.T, market *fakeMarket, fitter *forest.Trainer, opts ...ForecasterOption) (*Forecaster, *Trainer) {
	t.Helper()
	reg := newMemoryRegistry(t)
	tr := NewTrainer(fitter, reg)
	return NewForecaster(reg, tr, market, opts...), tr
}

func TestForecastLinearTrendTrainsOnDemand(t *testing.T) {
	bars := linearBars(400, 100, 200)
	f, _ := newForecaster(t, &fakeMarket{}, forest.NewTrainer())

	fc, err := f.Forecast(context.Background(), ForecastParams{Symbol: "LIN", HorizonDays: 5, Bars: bars})
	require.NoError(t, err)

	assert.Equal(t, models.SourceTrained, fc.Source)
	require.Len(t, fc.Points, 5)
	last := bars[len(bars)-1].Date
	assert.Equal(t, last, fc.LastKnownDate)
	for k, p := range fc.Points {
		assert.Equal(t, last.AddDate(0, 0, k+1), p.Date)
		assert.GreaterOrEqual(t, p.Close, 90.0)
		assert.LessOrEqual(t, p.Close, 220.0)
	}
}

func TestForecastUnknownSymbolWithoutBars(t *testing.T) {
	market := &fakeMarket{bars: linearBars(100, 10, 20)}
	f, _ := newForecaster(t, market, smallForest())

	_, err := f.Forecast(context.Background(), ForecastParams{Symbol: "ZZZ", HorizonDays: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrModelNotFound)
	assert.Zero(t, market.Calls())
}

func TestForecastHorizonBounds(t *testing.T) {
	f, _ := newForecaster(t, &fakeMarket{}, smallForest())
	bars := linearBars(60, 10, 20)

	for _, h := range []int{0, -1, DefaultMaxHorizon + 1} {
		_, err := f.Forecast(context.Background(), ForecastParams{Symbol: "AAA", HorizonDays: h, Bars: bars})
		assert.ErrorIs(t, err, errs.ErrInvalidInput, "horizon %d", h)
	}

	_, err := f.Forecast(context.Background(), ForecastParams{HorizonDays: 3, Bars: bars})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestForecastUsesStoredModelAndFetchesTrailingYear(t *testing.T) {
	bars := linearBars(120, 50, 80)
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	market := &fakeMarket{bars: bars}
	metrics := &recordingMetrics{}
	f, tr := newForecaster(t, market, smallForest(), WithForecastClock(fixedClock(now)), WithForecastMetrics(metrics))

	_, _, err := tr.Train(context.Background(), "MSFT", bars)
	require.NoError(t, err)

	fc, err := f.Forecast(context.Background(), ForecastParams{Symbol: "MSFT", HorizonDays: 7})
	require.NoError(t, err)

	assert.Equal(t, models.SourceStored, fc.Source)
	assert.Len(t, fc.Points, 7)
	assert.Equal(t, 1, market.Calls())
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), market.to)
	assert.Equal(t, market.to.AddDate(0, 0, -DefaultHistoryDays), market.from)
	assert.Equal(t, now, fc.GeneratedAt)
	assert.Equal(t, []models.ForecastSource{models.SourceStored}, metrics.forecasts)
}

func TestForecastStoredModelWinsOverGivenBars(t *testing.T) {
	bars := linearBars(120, 50, 80)
	f, tr := newForecaster(t, &fakeMarket{}, smallForest())

	_, _, err := tr.Train(context.Background(), "IBM", bars)
	require.NoError(t, err)

	fc, err := f.Forecast(context.Background(), ForecastParams{Symbol: "IBM", HorizonDays: 2, Bars: bars[:90]})
	require.NoError(t, err)
	assert.Equal(t, models.SourceStored, fc.Source)
	assert.Equal(t, bars[89].Date, fc.LastKnownDate)
}

func TestForecastDataUnavailable(t *testing.T) {
	bars := linearBars(80, 50, 80)
	cause := errors.New("upstream 503")

	t.Run("fetch error", func(t *testing.T) {
		market := &fakeMarket{err: cause}
		f, tr := newForecaster(t, market, smallForest())
		_, _, err := tr.Train(context.Background(), "AAA", bars)
		require.NoError(t, err)

		_, err = f.Forecast(context.Background(), ForecastParams{Symbol: "AAA", HorizonDays: 3})
		assert.ErrorIs(t, err, errs.ErrDataUnavailable)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("empty history", func(t *testing.T) {
		market := &fakeMarket{}
		f, tr := newForecaster(t, market, smallForest())
		_, _, err := tr.Train(context.Background(), "AAA", bars)
		require.NoError(t, err)

		_, err = f.Forecast(context.Background(), ForecastParams{Symbol: "AAA", HorizonDays: 3})
		assert.ErrorIs(t, err, errs.ErrDataUnavailable)
	})
}

func TestForecastTooFewRowsToSeed(t *testing.T) {
	bars := linearBars(80, 50, 80)
	f, tr := newForecaster(t, &fakeMarket{}, smallForest())
	_, _, err := tr.Train(context.Background(), "AAA", bars)
	require.NoError(t, err)

	// 28 bars give 9 feature rows, one short of the lookback.
	_, err = f.Forecast(context.Background(), ForecastParams{Symbol: "AAA", HorizonDays: 1, Bars: bars[:28]})
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	fc, err := f.Forecast(context.Background(), ForecastParams{Symbol: "AAA", HorizonDays: 1, Bars: bars[:29]})
	require.NoError(t, err)
	assert.Len(t, fc.Points, 1)
}

func TestForecastOnDemandInsufficientData(t *testing.T) {
	f, _ := newForecaster(t, &fakeMarket{}, smallForest())
	_, err := f.Forecast(context.Background(), ForecastParams{Symbol: "NEW", HorizonDays: 3, Bars: linearBars(25, 1, 2)})
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestForecastDeterministic(t *testing.T) {
	bars := linearBars(150, 20, 35)
	for i := range bars {
		bars[i].Close += 2 * math.Sin(float64(i)/4)
	}

	run := func() []float64 {
		f, _ := newForecaster(t, &fakeMarket{}, smallForest())
		fc, err := f.Forecast(context.Background(), ForecastParams{Symbol: "DET", HorizonDays: 10, Bars: bars})
		require.NoError(t, err)
		return fc.Values()
	}
	assert.Equal(t, run(), run())
}

func TestForecastPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f, _ := newForecaster(t, &fakeMarket{}, smallForest(), WithForecastEvents(pub))

	_, err := f.Forecast(context.Background(), ForecastParams{Symbol: "EVT", HorizonDays: 2, Bars: linearBars(60, 1, 2)})
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventForecastGenerated}, pub.Types())
}

func TestForecastRecordsErrorKind(t *testing.T) {
	metrics := &recordingMetrics{}
	f, _ := newForecaster(t, &fakeMarket{}, smallForest(), WithForecastMetrics(metrics))

	_, err := f.Forecast(context.Background(), ForecastParams{Symbol: "ZZZ", HorizonDays: 1})
	require.Error(t, err)
	assert.Equal(t, []string{"forecast:model_not_found"}, metrics.errors)
}

func TestForecastCancelled(t *testing.T) {
	bars := linearBars(80, 50, 80)
	f, tr := newForecaster(t, &fakeMarket{}, smallForest())
	_, _, err := tr.Train(context.Background(), "AAA", bars)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Forecast(ctx, ForecastParams{Symbol: "AAA", HorizonDays: 3, Bars: bars})
	assert.ErrorIs(t, err, context.Canceled)
}

// gatedStore holds Put until release is closed and remembers whether the
// context it saw was already done.
type gatedStore struct {
	domrepo.BlobStore
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	putErr error
}

func (s *gatedStore) Put(ctx context.Context, key string, data []byte) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	s.mu.Lock()
	s.putErr = ctx.Err()
	s.mu.Unlock()
	return s.BlobStore.Put(ctx, key, data)
}

func TestForecastOnDemandSurvivesFirstCallerCancel(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	store := &gatedStore{
		BlobStore: repository.NewCacheBlobStore(mc, "model"),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	reg := NewModelRegistry(store, forest.NewCodec())
	f := NewForecaster(reg, NewTrainer(smallForest(), reg), &fakeMarket{})
	bars := linearBars(80, 10, 20)
	params := ForecastParams{Symbol: "SHR", HorizonDays: 2, Bars: bars}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.Forecast(ctxA, params)
		errA <- err
	}()
	select {
	case <-store.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("training never reached the store")
	}

	type result struct {
		fc  *models.Forecast
		err error
	}
	resB := make(chan result, 1)
	go func() {
		fc, err := f.Forecast(context.Background(), params)
		resB <- result{fc, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting on shared training")
	}

	close(store.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Len(t, r.fc.Points, 2)
	case <-time.After(10 * time.Second):
		t.Fatal("second caller never finished")
	}

	store.mu.Lock()
	assert.NoError(t, store.putErr)
	store.mu.Unlock()
	_, err := reg.Load(context.Background(), "SHR")
	assert.NoError(t, err)
}

func TestDecidePlan(t *testing.T) {
	assert.Equal(t, planUseStored, decidePlan(true, true))
	assert.Equal(t, planUseStored, decidePlan(true, false))
	assert.Equal(t, planTrainOnDemand, decidePlan(false, true))
	assert.Equal(t, planNotFound, decidePlan(false, false))
	assert.Equal(t, "train_on_demand", planTrainOnDemand.String())
}

type inputRecorder struct {
	inputs [][]float64
	out    float64
}

func (r *inputRecorder) Predict(x []float64) float64 {
	r.inputs = append(r.inputs, append([]float64(nil), x...))
	return r.out
}

func TestRollForwardReplacesOnlyClose(t *testing.T) {
	w := make(window.Window, 3)
	for i := range w {
		for c := range w[i] {
			w[i][c] = float64(i*10 + c)
		}
	}
	rec := &inputRecorder{out: 0.75}

	preds, err := rollForward(context.Background(), rec, w, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0.75, 0.75}, preds)
	require.Len(t, rec.inputs, 3)

	nf := models.NumFeatures
	second := rec.inputs[1]
	// The window slid by one row: the old second row is now first.
	assert.Equal(t, rec.inputs[0][nf:2*nf], second[:nf])
	synthetic := second[2*nf:]
	for c := 0; c < nf; c++ {
		if c == models.ColClose {
			assert.Equal(t, 0.75, synthetic[c])
			continue
		}
		assert.Equal(t, float64(20+c), synthetic[c], "column %d", c)
	}
	// Input window is left untouched.
	assert.Equal(t, float64(20+models.ColClose), w[2][models.ColClose])
}

type constRegressor float64

func (c constRegressor) Predict([]float64) float64 { return float64(c) }

func TestRollForwardRejectsNonFinite(t *testing.T) {
	w := make(window.Window, 2)
	_, err := rollForward(context.Background(), constRegressor(math.NaN()), w, 2)
	assert.Error(t, err)
}

func TestFlightKeyDistinguishesHistory(t *testing.T) {
	a := linearBars(30, 1, 2)
	b := linearBars(30, 1, 2)
	assert.Equal(t, flightKey("X", a), flightKey("X", b))

	b[5].Close += 0.01
	assert.NotEqual(t, flightKey("X", a), flightKey("X", b))
	assert.NotEqual(t, flightKey("X", a), flightKey("Y", a))
}
