// Package scaler implements per-column min-max scaling with explicit state.
package scaler

import (
	"math"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
)

// Fit records each column's min and max over rows.
func Fit(rows []models.FeatureRow) (models.ScalerState, error) {
	var st models.ScalerState
	if len(rows) == 0 {
		return st, errs.InsufficientData("cannot fit scaler on zero rows")
	}
	for c := 0; c < models.NumFeatures; c++ {
		st.Min[c] = math.Inf(1)
		st.Max[c] = math.Inf(-1)
	}
	for _, r := range rows {
		v := r.Vector()
		for c, x := range v {
			st.Min[c] = math.Min(st.Min[c], x)
			st.Max[c] = math.Max(st.Max[c], x)
		}
	}
	return st, nil
}

// Apply scales rows into [0,1] using st. Values outside the fitted range map
// outside [0,1]. A column whose min equals its max scales to 0.
func Apply(rows []models.FeatureRow, st models.ScalerState) []models.ScaledRow {
	out := make([]models.ScaledRow, len(rows))
	for i, r := range rows {
		v := r.Vector()
		for c, x := range v {
			out[i][c] = scale(x, st.Min[c], st.Max[c])
		}
	}
	return out
}

// Invert maps scaled values of column col back to original units.
func Invert(values []float64, st models.ScalerState, col int) ([]float64, error) {
	if col < 0 || col >= models.NumFeatures {
		return nil, errs.InvalidInput("column %d out of range [0,%d)", col, models.NumFeatures)
	}
	lo, hi := st.Min[col], st.Max[col]
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = unscale(v, lo, hi)
	}
	return out, nil
}

func scale(x, lo, hi float64) float64 {
	span := hi - lo
	if span == 0 {
		return 0
	}
	return (x - lo) / span
}

func unscale(v, lo, hi float64) float64 {
	span := hi - lo
	if span == 0 {
		return lo
	}
	return v*span + lo
}
