package features

import (
	"math"
	"time"

	"PriceCast/internal/domain/models"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// linearBars returns n daily bars with close rising by step from start.
func linearBars(n int, start, step float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = models.PriceBar{
			Date:   baseDate.AddDate(0, 0, i),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: int64(1000 + i),
		}
	}
	return bars
}

func wavyBars(n int) []models.PriceBar {
	bars := linearBars(n, 50, 0.1)
	for i := range bars {
		bars[i].Close += 3 * math.Sin(float64(i)/3)
	}
	return bars
}
