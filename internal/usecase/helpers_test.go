package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/repository"
	"PriceCast/internal/services/forest"
	"PriceCast/pkg/cache"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func linearBars(n int, start, end float64) []models.PriceBar {
	step := 0.0
	if n > 1 {
		step = (end - start) / float64(n-1)
	}
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = models.PriceBar{
			Date:   baseDate.AddDate(0, 0, i),
			Open:   c - 0.25,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: int64(10000 + 10*i),
		}
	}
	return bars
}

type fakeMarket struct {
	mu       sync.Mutex
	bars     []models.PriceBar
	err      error
	calls    int
	from, to time.Time
}

func (m *fakeMarket) FetchDaily(_ context.Context, _ string, from, to time.Time) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.from, m.to = from, to
	if m.err != nil {
		return nil, m.err
	}
	return m.bars, nil
}

func (m *fakeMarket) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingMetrics struct {
	mu        sync.Mutex
	trains    int
	forecasts []models.ForecastSource
	errors    []string
	fetches   map[string]int
}

func (m *recordingMetrics) RecordTrain(string, float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trains++
}

func (m *recordingMetrics) RecordForecast(_ string, src models.ForecastSource, _ int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts = append(m.forecasts, src)
}

func (m *recordingMetrics) RecordError(op, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, op+":"+kind)
}

func (m *recordingMetrics) RecordFetch(source string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetches == nil {
		m.fetches = make(map[string]int)
	}
	m.fetches[source]++
}

func newMemoryRegistry(t *testing.T) *ModelRegistry {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(0), cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	return NewModelRegistry(repository.NewCacheBlobStore(mc, "model"), forest.NewCodec())
}

// smallForest keeps tests quick; the default 100 trees is exercised separately.
func smallForest() *forest.Trainer {
	return forest.NewTrainer(forest.WithEstimators(12), forest.WithSeed(42))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
