package models

import "time"

// Source-native records produced by the adapters. They are typed at the
// adapter boundary and live for one poll cycle only.

// RawEvent is one game as reported by the primary schedule/score source.
type RawEvent struct {
	ID           string         `json:"id"`
	HomeTeamName string         `json:"homeTeamName"`
	AwayTeamName string         `json:"awayTeamName"`
	HomeScore    int            `json:"homeScore"`
	AwayScore    int            `json:"awayScore"`
	State        LifecycleState `json:"state"`
	StatusText   string         `json:"statusText"`
	Period       int            `json:"period"`
	Clock        string         `json:"clock"`
	StartTime    time.Time      `json:"startTime"`
}

// RawInjury is an injury entry keyed by the probability source's team name.
type RawInjury struct {
	TeamName string `json:"teamName"`
	Player   string `json:"player"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// RawProbability is the probability source payload before orientation.
// Probabilities are fractions in [0,1].
type RawProbability struct {
	EventRef         string      `json:"eventRef"`
	HomeTeamName     string      `json:"homeTeamName"`
	AwayTeamName     string      `json:"awayTeamName"`
	PregameHome      float64     `json:"pregameHome"`
	PregameAway      float64     `json:"pregameAway"`
	PregameAvailable bool        `json:"pregameAvailable"`
	LiveHome         float64     `json:"liveHome"`
	LiveAvailable    bool        `json:"liveAvailable"`
	Injuries         []RawInjury `json:"injuries,omitempty"`
}

// RawMarket is a single tradeable market inside a market-event.
type RawMarket struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Slug      string    `json:"slug"`
	Outcomes  []string  `json:"outcomes"`
	Prices    []float64 `json:"prices"`
	Liquidity float64   `json:"liquidity"`
	Volume    float64   `json:"volume"`
	EndDate   time.Time `json:"endDate"`
	Closed    bool      `json:"closed"`
}

// RawMarketEvent groups the markets for one real-world game.
type RawMarketEvent struct {
	ID        string      `json:"id"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
	Active    bool        `json:"active"`
	Closed    bool        `json:"closed"`
	Archived  bool        `json:"archived"`
	Liquidity float64     `json:"liquidity"`
	Volume    float64     `json:"volume"`
	Markets   []RawMarket `json:"markets"`
}

// Open reports whether the market-event is currently tradeable.
func (e RawMarketEvent) Open() bool {
	return e.Active && !e.Closed && !e.Archived
}
