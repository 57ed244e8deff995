package models

import "time"

// ForecastSource tells whether a forecast used a stored or a freshly trained model.
type ForecastSource string

const (
	SourceStored  ForecastSource = "stored"
	SourceTrained ForecastSource = "trained"
)

type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

type Forecast struct {
	Symbol        string          `json:"symbol"`
	LastKnownDate time.Time       `json:"last_known_date"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Source        ForecastSource  `json:"source"`
	Points        []ForecastPoint `json:"points"`
}

// Values returns the predicted closes in horizon order.
func (f *Forecast) Values() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Close
	}
	return out
}

// SymbolMatch is one result of a ticker search.
type SymbolMatch struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}
