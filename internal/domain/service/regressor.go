package service

import (
	"context"

	"PriceCast/internal/domain/models"
)

// RegressorTrainer fits a regressor on flattened windows and their targets.
type RegressorTrainer interface {
	Fit(ctx context.Context, X [][]float64, y []float64) (models.Regressor, error)
}

// RegressorCodec serializes regressors produced by a RegressorTrainer.
type RegressorCodec interface {
	Encode(r models.Regressor) ([]byte, error)
	Decode(data []byte) (models.Regressor, error)
}
