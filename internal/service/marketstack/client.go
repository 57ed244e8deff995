// Package marketstack reads end-of-day prices and ticker metadata from the
// marketstack REST API.
package marketstack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/ratelimit"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const (
	DefaultBaseURL = "http://api.marketstack.com/v1/"
	maxPageSize    = 1000
	// bounds the number of pages followed for one request
	maxPages = 20
	na       = "N/A"
)

type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client implements domrepo.MarketData and domrepo.SymbolSearcher.
type Client struct {
	base    string
	apiKey  string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	logger  *xlogger.Logger
}

func New(cfg Config, logger *xlogger.Logger, opts ...xhttp.ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("marketstack: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		http:    xhttp.NewClient(opts...),
		limiter: ratelimit.New(cfg.RatePerSecond, cfg.Burst),
		logger:  logger,
	}, nil
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Total  int `json:"total"`
}

type eodRow struct {
	Date   string   `json:"date"`
	Symbol string   `json:"symbol"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

type eodResponse struct {
	Pagination pagination `json:"pagination"`
	Data       []eodRow   `json:"data"`
}

type tickerRow struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	StockExchange *struct {
		Name string `json:"name"`
	} `json:"stock_exchange"`
}

type tickersResponse struct {
	Data []tickerRow `json:"data"`
}

// FetchDaily returns the bars in [from, to] sorted by date, one per day.
// Rows without a parsable date or close are skipped.
func (c *Client) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	q := url.Values{
		"symbols":   {symbol},
		"date_from": {from.Format(time.DateOnly)},
		"date_to":   {to.Format(time.DateOnly)},
		"limit":     {strconv.Itoa(maxPageSize)},
		"sort":      {"ASC"},
	}

	var bars []models.PriceBar
	skipped := 0
	for page, offset := 0, 0; page < maxPages; page++ {
		q.Set("offset", strconv.Itoa(offset))
		var resp eodResponse
		if err := c.get(ctx, "eod", q, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Data {
			b, ok := toBar(r)
			if !ok {
				skipped++
				continue
			}
			bars = append(bars, b)
		}
		offset += len(resp.Data)
		if len(resp.Data) == 0 || offset >= resp.Pagination.Total {
			break
		}
	}
	if skipped > 0 {
		c.logger.Warn("marketstack rows skipped", xlogger.String("symbol", symbol), xlogger.Int("skipped", skipped))
	}

	slices.SortStableFunc(bars, func(a, b models.PriceBar) int { return a.Date.Compare(b.Date) })
	bars = slices.CompactFunc(bars, func(a, b models.PriceBar) bool { return a.Date.Equal(b.Date) })
	return bars, nil
}

// Search looks tickers up by name or symbol. Missing fields read "N/A".
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.SymbolMatch, error) {
	q := url.Values{"search": {query}, "limit": {strconv.Itoa(limit)}}
	var resp tickersResponse
	if err := c.get(ctx, "tickers", q, &resp); err != nil {
		return nil, err
	}
	out := make([]models.SymbolMatch, 0, len(resp.Data))
	for _, t := range resp.Data {
		m := models.SymbolMatch{Name: orNA(t.Name), Symbol: orNA(t.Symbol), Exchange: na}
		if t.StockExchange != nil {
			m.Exchange = orNA(t.StockExchange.Name)
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}
	q.Set("access_key", c.apiKey)
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.base + endpoint,
		QueryParams: q,
	}, dest)
	q.Del("access_key")
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("marketstack %s: status %d", endpoint, se.Code)
		}
		// the request URL carries the access key
		return fmt.Errorf("marketstack %s: %w", endpoint, redact(err, c.apiKey))
	}
	c.logger.Debug("marketstack request",
		xlogger.String("endpoint", endpoint),
		xlogger.Duration("took_ms", time.Since(start)))
	return nil
}

func toBar(r eodRow) (models.PriceBar, bool) {
	t, ok := util.ParseTime(r.Date)
	if !ok || r.Close == nil {
		return models.PriceBar{}, false
	}
	b := models.PriceBar{Date: models.Day(t), Close: *r.Close}
	b.Open = valueOr(r.Open, b.Close)
	b.High = valueOr(r.High, b.Close)
	b.Low = valueOr(r.Low, b.Close)
	if r.Volume != nil {
		b.Volume = int64(*r.Volume)
	}
	return b, true
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), cause: errors.Unwrap(err)}
}

var (
	_ domrepo.MarketData     = (*Client)(nil)
	_ domrepo.SymbolSearcher = (*Client)(nil)
)
