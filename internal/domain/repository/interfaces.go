package repository

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
)

// ErrBlobNotFound is returned by a BlobStore when the key has never been written.
var ErrBlobNotFound = errors.New("blob not found")

// MarketData returns chronologically ordered daily bars, or an empty slice for no data.
type MarketData interface {
	FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
}

type SymbolSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SymbolMatch, error)
}

// BlobStore is durable key/blob storage. Put must replace the value atomically.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Keys(ctx context.Context) ([]string, error)
}

// BarStore caches fetched daily bars.
type BarStore interface {
	Init(ctx context.Context) error
	UpsertBars(ctx context.Context, symbol string, bars []models.PriceBar) error
	QueryBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
	Health(ctx context.Context) error
	Close() error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev *models.Event) error
	Close() error
}

type Metrics interface {
	RecordTrain(symbol string, seconds, mse float64)
	RecordForecast(symbol string, source models.ForecastSource, horizon int, seconds float64)
	RecordError(op, kind string)
	RecordFetch(source string, bars int)
}
