package usecase

import (
	"context"

	"PriceCast/internal/domain/models"
)

// ForecastInvalidator drops memoised forecasts for a symbol.
type ForecastInvalidator interface {
	Invalidate(ctx context.Context, symbol string)
}

// TrainingUseCase trains a symbol from fetched history. It backs the HTTP,
// CLI, queue and Kafka entry points.
type TrainingUseCase struct {
	bars      *BarsUseCase
	trainer   *Trainer
	forecasts ForecastInvalidator
}

// NewTrainingUseCase creates a new TrainingUseCase. forecasts may be nil when
// no forecast cache is in use.
func NewTrainingUseCase(bars *BarsUseCase, trainer *Trainer, forecasts ForecastInvalidator) *TrainingUseCase {
	return &TrainingUseCase{bars: bars, trainer: trainer, forecasts: forecasts}
}

// Run fetches the requested range, trains and stores the model, then drops
// cached forecasts made with the replaced one.
func (uc *TrainingUseCase) Run(ctx context.Context, cmd models.TrainCommand) (*models.TrainResult, error) {
	from, err := ParseDay(cmd.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseDay(cmd.To)
	if err != nil {
		return nil, err
	}
	hist, err := uc.bars.History(ctx, HistoryParams{Symbol: cmd.Symbol, From: from, To: to})
	if err != nil {
		return nil, err
	}
	a, mse, err := uc.trainer.Train(ctx, cmd.Symbol, hist.Bars)
	if err != nil {
		return nil, err
	}
	if uc.forecasts != nil {
		uc.forecasts.Invalidate(ctx, cmd.Symbol)
	}
	return &models.TrainResult{Model: a.Info(), MSE: mse}, nil
}
