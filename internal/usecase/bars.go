package usecase

import (
	"context"
	"time"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	xlogger "PriceCast/pkg/logger"
)

// DefaultHistoryDays is the trailing window fetched when no range is given.
const DefaultHistoryDays = 365

// A cached range is accepted when it reaches within these many days of the
// requested bounds. Weekends and exchange holidays leave gaps at either end.
const (
	cacheHeadSlackDays = 5
	cacheTailSlackDays = 3
)

// BarsUseCase loads daily history, reading through an optional bar cache.
// It satisfies domrepo.MarketData so the forecaster can use it directly.
type BarsUseCase struct {
	source  domrepo.MarketData
	cache   domrepo.BarStore
	metrics domrepo.Metrics
	logger  *xlogger.Logger
	now     func() time.Time

	historyDays int
}

// NewBarsUseCase creates a new BarsUseCase. cache may be nil.
func NewBarsUseCase(source domrepo.MarketData, cache domrepo.BarStore, metrics domrepo.Metrics, logger *xlogger.Logger) *BarsUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &BarsUseCase{
		source:      source,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		historyDays: DefaultHistoryDays,
	}
}

func (uc *BarsUseCase) SetHistoryDays(days int) {
	if days > 0 {
		uc.historyDays = days
	}
}

func (uc *BarsUseCase) SetClock(now func() time.Time) { uc.now = now }

type HistoryParams struct {
	Symbol string
	From   time.Time // zero means To minus the default history window
	To     time.Time // zero means today
}

type HistoryResult struct {
	Symbol string            `json:"symbol"`
	From   time.Time         `json:"from"`
	To     time.Time         `json:"to"`
	Count  int               `json:"count"`
	Bars   []models.PriceBar `json:"bars"`
}

// History validates the range and returns the bars, failing with
// DataUnavailable when the source errors or has nothing.
func (uc *BarsUseCase) History(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
	if p.Symbol == "" {
		return nil, errs.InvalidInput("symbol is required")
	}
	to := p.To
	if to.IsZero() {
		to = models.Day(uc.now())
	}
	from := p.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -uc.historyDays)
	}
	if from.After(to) {
		return nil, errs.InvalidInput("from %s is after to %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	bars, err := loadHistory(ctx, uc, p.Symbol, from, to)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Symbol: p.Symbol, From: from, To: to, Count: len(bars), Bars: bars}, nil
}

// Trailing returns the default history window ending today.
func (uc *BarsUseCase) Trailing(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	res, err := uc.History(ctx, HistoryParams{Symbol: symbol})
	if err != nil {
		return nil, err
	}
	return res.Bars, nil
}

// FetchDaily serves from the cache when it covers [from, to], otherwise from
// the upstream source, writing fresh results back to the cache.
func (uc *BarsUseCase) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	if uc.cache != nil {
		cached, err := uc.cache.QueryBars(ctx, symbol, from, to)
		switch {
		case err != nil:
			uc.logger.Warn("bar cache read failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		case covers(cached, from, to):
			uc.metrics.RecordFetch("cache", len(cached))
			return cached, nil
		}
	}

	bars, err := uc.source.FetchDaily(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	uc.metrics.RecordFetch("upstream", len(bars))

	if uc.cache != nil && len(bars) > 0 {
		if err := uc.cache.UpsertBars(ctx, symbol, bars); err != nil {
			uc.logger.Warn("bar cache write failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		}
	}
	return bars, nil
}

func covers(bars []models.PriceBar, from, to time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Date, bars[len(bars)-1].Date
	return !first.After(from.AddDate(0, 0, cacheHeadSlackDays)) &&
		!last.Before(to.AddDate(0, 0, -cacheTailSlackDays))
}

// loadHistory fetches bars and maps failures and empty results to DataUnavailable.
func loadHistory(ctx context.Context, md domrepo.MarketData, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	bars, err := md.FetchDaily(ctx, symbol, from, to)
	if err != nil {
		return nil, errs.DataUnavailable(err, "fetch %s history", symbol)
	}
	if len(bars) == 0 {
		return nil, errs.DataUnavailable(nil, "no data for %s between %s and %s",
			symbol, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return bars, nil
}

// ParseDay parses YYYY-MM-DD; the empty string yields the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errs.InvalidInput("bad date %q: %v", s, err)
	}
	return t, nil
}

var _ domrepo.MarketData = (*BarsUseCase)(nil)
