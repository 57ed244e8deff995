package usecase

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"

	"github.com/google/uuid"
)

type nopMetrics struct{}

func (nopMetrics) RecordTrain(string, float64, float64)                       {}
func (nopMetrics) RecordForecast(string, models.ForecastSource, int, float64) {}
func (nopMetrics) RecordError(string, string)                                 {}
func (nopMetrics) RecordFetch(string, int)                                    {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *models.Event) error { return nil }
func (nopPublisher) Close() error                                 { return nil }

var (
	_ domrepo.Metrics        = nopMetrics{}
	_ domrepo.EventPublisher = nopPublisher{}
)

func newEvent(typ, symbol string, at time.Time, payload any) *models.Event {
	return &models.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Symbol:     symbol,
		OccurredAt: at,
		Payload:    payload,
	}
}
