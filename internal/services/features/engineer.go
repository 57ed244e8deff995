// Package features derives the per-day feature table used for training and forecasting.
package features

import (
	"PriceCast/internal/domain/models"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	shortWindow = 5
	midWindow   = 10
	longWindow  = 20
	volWindow   = 5
)

// WarmUp is the number of leading bars that never yield a row: ma_20 needs 20 closes.
const WarmUp = longWindow - 1

// MinBars is the smallest series that produces at least one row.
const MinBars = longWindow

// Compute turns daily bars into feature rows. Row i only depends on bars[0..i].
// Leading bars whose features are undefined are dropped, so fewer than MinBars
// bars give an empty result.
func Compute(bars []models.PriceBar) []models.FeatureRow {
	if len(bars) < MinBars {
		return []models.FeatureRow{}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	returns := talib.Rocp(closes, 1)
	ma5 := talib.Sma(closes, shortWindow)
	ma10 := talib.Sma(closes, midWindow)
	ma20 := talib.Sma(closes, longWindow)

	out := make([]models.FeatureRow, 0, len(bars)-WarmUp)
	for i := WarmUp; i < len(bars); i++ {
		b := bars[i]
		out = append(out, models.FeatureRow{
			Date:        b.Date,
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			Volume:      float64(b.Volume),
			DailyReturn: returns[i],
			MA5:         ma5[i],
			MA10:        ma10[i],
			MA20:        ma20[i],
			Volatility5: stat.StdDev(returns[i-volWindow+1:i+1], nil),
		})
	}
	return out
}
