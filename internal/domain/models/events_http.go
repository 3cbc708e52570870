package models

// Requests for the read API. Defined in domain for consistency and reuse.

type ListEventsRequest struct {
	State      string `query:"state" json:"state" validate:"omitempty,oneof=SCHEDULED LIVE FINAL"`
	HasSignals string `query:"has_signals" json:"has_signals" validate:"omitempty,oneof=true false"`
	Limit      int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}

type ListSignalsRequest struct {
	Direction     string  `query:"direction" json:"direction" validate:"omitempty,oneof=BUY SELL"`
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	Limit         int     `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}
