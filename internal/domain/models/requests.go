package models

// Requests for HTTP endpoints. Dates use YYYY-MM-DD.

type SearchRequest struct {
	Query string `query:"q" json:"q" validate:"required"`
	Limit int    `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=50"`
}

type BarsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}

type TrainRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Async  bool   `query:"async" json:"async"`
}

type ForecastRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}
