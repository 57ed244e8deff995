package cache

import (
	"context"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	pkgcache "PriceCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForecast(symbol string, days int) *models.Forecast {
	last := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	fc := &models.Forecast{Symbol: symbol, LastKnownDate: last, Source: models.SourceStored}
	for k := 1; k <= days; k++ {
		fc.Points = append(fc.Points, models.ForecastPoint{Date: last.AddDate(0, 0, k), Close: 100 + float64(k)})
	}
	return fc
}

func TestForecastCache(t *testing.T) {
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mc.Close()
	c := NewForecastCache(mc, time.Hour, nil)
	now := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok := c.Get(ctx, "AAPL", 3)
	assert.False(t, ok)

	c.Set(ctx, sampleForecast("AAPL", 3))
	c.Set(ctx, sampleForecast("AAPL", 5))
	c.Set(ctx, sampleForecast("AAP", 3))

	got, ok := c.Get(ctx, "AAPL", 3)
	require.True(t, ok)
	assert.Equal(t, []float64{101, 102, 103}, got.Values())

	// a new day is a new key
	now = now.Add(24 * time.Hour)
	_, ok = c.Get(ctx, "AAPL", 3)
	assert.False(t, ok)
	now = now.Add(-24 * time.Hour)

	c.Invalidate(ctx, "AAPL")
	_, ok = c.Get(ctx, "AAPL", 3)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "AAPL", 5)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "AAP", 3)
	assert.True(t, ok)
}

func TestNilForecastCacheIsSafe(t *testing.T) {
	var c *ForecastCache
	c.Set(context.Background(), sampleForecast("X", 1))
	c.Invalidate(context.Background(), "X")
	_, ok := c.Get(context.Background(), "X", 1)
	assert.False(t, ok)
}
