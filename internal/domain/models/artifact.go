package models

import "time"

// Regressor maps a flattened window to a scaled close prediction.
type Regressor interface {
	Predict(x []float64) float64
}

// ScalerState holds per-column bounds observed when the scaler was fitted.
// It is frozen after fitting and travels with the artifact that owns it.
type ScalerState struct {
	Min [NumFeatures]float64 `json:"min"`
	Max [NumFeatures]float64 `json:"max"`
}

// ModelArtifact is the persisted result of training for one symbol.
type ModelArtifact struct {
	Symbol       string      `json:"symbol"`
	Regressor    Regressor   `json:"-"`
	Scaler       ScalerState `json:"scaler"`
	TrainedAt    time.Time   `json:"trained_at"`
	Lookback     int         `json:"lookback"`
	EvalMSE      float64     `json:"eval_mse"`
	TrainSamples int         `json:"train_samples"`
	TestSamples  int         `json:"test_samples"`
}

// ModelInfo is the artifact metadata without the regressor.
type ModelInfo struct {
	Symbol       string    `json:"symbol"`
	TrainedAt    time.Time `json:"trained_at"`
	Lookback     int       `json:"lookback"`
	EvalMSE      float64   `json:"eval_mse"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
}

func (a *ModelArtifact) Info() ModelInfo {
	return ModelInfo{
		Symbol:       a.Symbol,
		TrainedAt:    a.TrainedAt,
		Lookback:     a.Lookback,
		EvalMSE:      a.EvalMSE,
		TrainSamples: a.TrainSamples,
		TestSamples:  a.TestSamples,
	}
}
