package models

import "time"

// Event types published on the events topic.
const (
	EventModelTrained      = "model.trained"
	EventForecastGenerated = "forecast.generated"
)

// Event is the envelope for everything written to the events topic.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Symbol     string    `json:"symbol"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// TrainCommand asks a worker to (re)train a symbol over an optional date range.
type TrainCommand struct {
	Symbol string `json:"symbol"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

type TrainResult struct {
	Model ModelInfo `json:"model"`
	MSE   float64   `json:"mse"`
}
