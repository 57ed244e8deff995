package models

import "time"

// Column positions of the engineered feature vector.
const (
	ColOpen = iota
	ColHigh
	ColLow
	ColClose
	ColVolume
	ColDailyReturn
	ColMA5
	ColMA10
	ColMA20
	ColVolatility5

	NumFeatures
)

// FeatureNames lists the columns in vector order.
var FeatureNames = [NumFeatures]string{
	"open", "high", "low", "close", "volume",
	"daily_return", "ma_5", "ma_10", "ma_20", "volatility_5",
}

// FeatureRow is a fully defined engineered row for one trading day.
type FeatureRow struct {
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	DailyReturn float64   `json:"daily_return"`
	MA5         float64   `json:"ma_5"`
	MA10        float64   `json:"ma_10"`
	MA20        float64   `json:"ma_20"`
	Volatility5 float64   `json:"volatility_5"`
}

// Vector returns the 10 feature columns in column order.
func (r FeatureRow) Vector() [NumFeatures]float64 {
	return [NumFeatures]float64{
		r.Open, r.High, r.Low, r.Close, r.Volume,
		r.DailyReturn, r.MA5, r.MA10, r.MA20, r.Volatility5,
	}
}

// ScaledRow is a feature vector after min-max scaling.
type ScaledRow [NumFeatures]float64
