// Package window builds supervised lookback windows from scaled feature rows.
package window

import (
	"math"

	"PriceCast/internal/domain/models"
)

// DefaultLookback is the number of consecutive rows in a window.
const DefaultLookback = 10

// DefaultTestFraction is the held-out share of windows used for evaluation.
const DefaultTestFraction = 0.2

// Window is a run of consecutive scaled rows, oldest first.
type Window []models.ScaledRow

// Build returns X[i] = rows[i:i+lookback] and y[i] = rows[i+lookback][close].
// The result is empty when len(rows) <= lookback.
func Build(rows []models.ScaledRow, lookback int) ([]Window, []float64) {
	n := len(rows) - lookback
	if lookback <= 0 || n <= 0 {
		return nil, nil
	}
	X := make([]Window, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = Window(rows[i : i+lookback])
		y[i] = rows[i+lookback][models.ColClose]
	}
	return X, y
}

// Split holds a chronological train/test partition.
type Split struct {
	TrainX []Window
	TrainY []float64
	TestX  []Window
	TestY  []float64
}

// TestSize returns how many of n samples are held out: ceil(fraction*n).
func TestSize(n int, fraction float64) int {
	if n <= 0 || fraction <= 0 {
		return 0
	}
	k := int(math.Ceil(fraction * float64(n)))
	if k > n {
		k = n
	}
	return k
}

// ChronoSplit keeps the first windows for training and the most recent ones for testing.
// No shuffling is done.
func ChronoSplit(X []Window, y []float64, testFraction float64) Split {
	cut := len(X) - TestSize(len(X), testFraction)
	return Split{
		TrainX: X[:cut],
		TrainY: y[:cut],
		TestX:  X[cut:],
		TestY:  y[cut:],
	}
}

// Flatten concatenates the window's rows in row-major order.
func Flatten(w Window) []float64 {
	out := make([]float64, 0, len(w)*models.NumFeatures)
	for _, r := range w {
		out = append(out, r[:]...)
	}
	return out
}

// FlattenAll flattens every window.
func FlattenAll(ws []Window) [][]float64 {
	out := make([][]float64, len(ws))
	for i, w := range ws {
		out[i] = Flatten(w)
	}
	return out
}

// Slide drops the oldest row of w and appends next, returning a new window.
func Slide(w Window, next models.ScaledRow) Window {
	out := make(Window, 0, len(w))
	out = append(out, w[1:]...)
	return append(out, next)
}
