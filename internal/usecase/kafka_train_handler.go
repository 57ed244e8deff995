package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	pkgkafka "PriceCast/pkg/kafka"
	xlogger "PriceCast/pkg/logger"
)

// KafkaTrainHandler consumes TrainCommand messages.
type KafkaTrainHandler struct {
	topic    string
	training *TrainingUseCase
	logger   *xlogger.Logger
}

// NewKafkaTrainHandler creates a handler for train requests on topic.
func NewKafkaTrainHandler(topic string, training *TrainingUseCase, logger *xlogger.Logger) *KafkaTrainHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &KafkaTrainHandler{topic: topic, training: training, logger: logger}
}

func (h *KafkaTrainHandler) Topic() string { return h.topic }

// Handle trains the requested symbol. Malformed messages and domain errors other
// than DataUnavailable are marked permanent; anything else may be retried.
func (h *KafkaTrainHandler) Handle(ctx context.Context, b []byte) error {
	var cmd models.TrainCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode train command: %w", err))
	}

	res, err := h.training.Run(ctx, cmd)
	if err != nil {
		if errs.IsDomain(err) && !errors.Is(err, errs.ErrDataUnavailable) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.logger.Info("train command done",
		xlogger.String("symbol", cmd.Symbol),
		xlogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
		xlogger.Float64("mse", res.MSE),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTrainHandler)(nil)
