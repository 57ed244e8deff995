// Package cache memoises forecasts for API callers.
package cache

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
	pkgcache "PriceCast/pkg/cache"
	xlogger "PriceCast/pkg/logger"
)

const keyPrefix = "forecast"

// ForecastCache stores forecasts per (symbol, horizon, day). Entries for a
// symbol are dropped when it is retrained.
type ForecastCache struct {
	svc    pkgcache.Service
	ttl    time.Duration
	logger *xlogger.Logger
	now    func() time.Time
}

func NewForecastCache(svc pkgcache.Service, ttl time.Duration, logger *xlogger.Logger) *ForecastCache {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastCache{svc: svc, ttl: ttl, logger: logger, now: time.Now}
}

func (c *ForecastCache) key(symbol string, days int) string {
	return pkgcache.GenerateKey(keyPrefix, symbol, days, c.now().UTC().Format(time.DateOnly))
}

// Get returns a cached forecast or ok=false. Cache failures count as misses.
func (c *ForecastCache) Get(ctx context.Context, symbol string, days int) (*models.Forecast, bool) {
	if c == nil || c.svc == nil {
		return nil, false
	}
	fc, err := pkgcache.GetJSON[*models.Forecast](ctx, c.svc, c.key(symbol, days))
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.logger.Warn("forecast cache read failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		}
		return nil, false
	}
	return fc, fc != nil
}

func (c *ForecastCache) Set(ctx context.Context, fc *models.Forecast) {
	if c == nil || c.svc == nil || fc == nil {
		return
	}
	if err := pkgcache.SetJSON(ctx, c.svc, c.key(fc.Symbol, len(fc.Points)), fc, c.ttl); err != nil {
		c.logger.Warn("forecast cache write failed", xlogger.String("symbol", fc.Symbol), xlogger.Error(err))
	}
}

// Invalidate drops every cached forecast for symbol.
func (c *ForecastCache) Invalidate(ctx context.Context, symbol string) {
	if c == nil || c.svc == nil {
		return
	}
	keys, err := c.svc.Keys(ctx, pkgcache.GenerateKey(keyPrefix, symbol)+":")
	if err == nil && len(keys) > 0 {
		err = c.svc.Delete(ctx, keys...)
	}
	if err != nil {
		c.logger.Warn("forecast cache invalidate failed", xlogger.String("symbol", symbol), xlogger.Error(err))
	}
}
