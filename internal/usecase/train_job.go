package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/queue"
)

// TrainJobType is the queue message type for asynchronous training.
const TrainJobType = "train_model"

// TrainJob runs queued TrainCommands.
type TrainJob struct {
	training *TrainingUseCase
	logger   *xlogger.Logger
}

// NewTrainJob creates a new TrainJob instance.
func NewTrainJob(training *TrainingUseCase, logger *xlogger.Logger) *TrainJob {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TrainJob{training: training, logger: logger}
}

func (j *TrainJob) Name() string { return "train-model" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	cmd, err := queue.Decode[models.TrainCommand](payload)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrDiscard, err)
	}
	res, err := j.training.Run(ctx, *cmd)
	if err != nil {
		if errs.IsDomain(err) && !errors.Is(err, errs.ErrDataUnavailable) {
			return errors.Join(queue.ErrDiscard, err)
		}
		return err
	}
	j.logger.Info("queued training done",
		xlogger.String("symbol", cmd.Symbol),
		xlogger.Float64("mse", res.MSE),
		xlogger.Int("train_samples", res.Model.TrainSamples))
	return nil
}

var _ queue.Job = (*TrainJob)(nil)
