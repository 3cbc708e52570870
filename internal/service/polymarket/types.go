package polymarket

import "github.com/shopspring/decimal"

// gammaEvent is one Gamma market-event. Numeric fields arrive either as JSON
// numbers or strings; decimal accepts both.
type gammaEvent struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Active    bool            `json:"active"`
	Closed    bool            `json:"closed"`
	Archived  bool            `json:"archived"`
	Liquidity decimal.Decimal `json:"liquidity"`
	Volume    decimal.Decimal `json:"volume"`
	Markets   []gammaMarket   `json:"markets"`
}

// gammaMarket carries outcomes and prices as JSON-encoded arrays inside strings,
// e.g. "[\"Celtics\", \"Pistons\"]" and "[\"0.45\", \"0.55\"]".
type gammaMarket struct {
	ID               string          `json:"id"`
	Question         string          `json:"question"`
	Slug             string          `json:"slug"`
	OutcomesRaw      string          `json:"outcomes"`
	OutcomePricesRaw string          `json:"outcomePrices"`
	Liquidity        decimal.Decimal `json:"liquidity"`
	Volume           decimal.Decimal `json:"volume"`
	EndDate          string          `json:"endDate"`
	Closed           bool            `json:"closed"`
}
