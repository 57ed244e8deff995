package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

const upsertChunkSize = 1000

// BarsSchema returns the DDL for the daily bar cache. ReplacingMergeTree keeps
// the row with the newest fetched_at per (symbol, day).
func BarsSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            symbol     LowCardinality(String),
            day        Date,
            open       Float64,
            high       Float64,
            low        Float64,
            close      Float64,
            volume     Int64,
            fetched_at DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(fetched_at)
        ORDER BY (symbol, day)`, database, table),
	}
}

// CHBarStore caches daily bars in ClickHouse.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHBarStore(db *sql.DB, table string) *CHBarStore {
	return &CHBarStore{db: db, table: table, l: applogger.Nop(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.Health(ctx)
}

func (s *CHBarStore) UpsertBars(ctx context.Context, symbol string, bars []models.PriceBar) error {
	fetchedAt := s.now().UTC()
	for start := 0; start < len(bars); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(bars))
		chunk := bars[start:end]

		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for i, b := range chunk {
			values[i] = "(?, ?, ?, ?, ?, ?, ?, ?)"
			args = append(args, symbol, models.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume, fetchedAt)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, day, open, high, low, close, volume, fetched_at) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse upsert_bars error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(chunk)),
				applogger.Error(err),
			)
			return fmt.Errorf("upsert bars: %w", err)
		}
	}
	return nil
}

// QueryBars returns cached bars in [from, to], ascending by day.
func (s *CHBarStore) QueryBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	q := fmt.Sprintf(`
        SELECT day, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND day >= ? AND day <= ?
        ORDER BY day ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, models.Day(from), models.Day(to))
	if err != nil {
		s.l.Error("clickhouse query_bars error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = models.Day(b.Date)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHBarStore) Close() error { return nil }

var _ domrepo.BarStore = (*CHBarStore)(nil)
