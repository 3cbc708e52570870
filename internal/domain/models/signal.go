package models

import "time"

type Side string

const (
	SideHome Side = "HOME"
	SideAway Side = "AWAY"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Signal is immutable once created. The full list is recomputed every cycle.
type Signal struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	Side       Side      `json:"side"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Edge       float64   `json:"edge"`
	Reason     string    `json:"reason"`
	ComputedAt time.Time `json:"computedAt"`
}
