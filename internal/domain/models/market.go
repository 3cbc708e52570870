package models

import (
	"math"
	"time"
)

// PriceSumTolerance bounds |homePrice + awayPrice - 1| for a two-outcome market.
const PriceSumTolerance = 0.03

// MarketQuote is a reconciled two-outcome winner market oriented to the
// primary source's home/away designation.
type MarketQuote struct {
	MarketID        string      `json:"marketId"`
	EventSlug       string      `json:"eventSlug,omitempty"`
	Question        string      `json:"question,omitempty"`
	HomeTeam        CanonicalID `json:"homeTeam"`
	AwayTeam        CanonicalID `json:"awayTeam"`
	HomePrice       float64     `json:"homePrice"`
	AwayPrice       float64     `json:"awayPrice"`
	Liquidity       float64     `json:"liquidity"`
	Volume          float64     `json:"volume"`
	MarketCloseTime time.Time   `json:"marketCloseTime"`
	PriceFlagged    bool        `json:"priceFlagged"`
}

// PriceDeviation is how far the two prices are from summing to 1.
func (q MarketQuote) PriceDeviation() float64 {
	return math.Abs(q.HomePrice + q.AwayPrice - 1)
}

// PricesConsistent reports whether the quote satisfies the price-sum invariant.
func (q MarketQuote) PricesConsistent() bool {
	return q.PriceDeviation() <= PriceSumTolerance+1e-9
}

// PriceFor returns the market price of the given side.
func (q MarketQuote) PriceFor(side Side) float64 {
	if side == SideAway {
		return q.AwayPrice
	}
	return q.HomePrice
}
