package models

import "time"

type LifecycleState string

const (
	StateScheduled LifecycleState = "SCHEDULED"
	StateLive      LifecycleState = "LIVE"
	StateFinal     LifecycleState = "FINAL"
)

// Valid reports whether s is a known lifecycle state.
func (s LifecycleState) Valid() bool {
	switch s {
	case StateScheduled, StateLive, StateFinal:
		return true
	}
	return false
}

// DataCompleteness records which upstream legs contributed to the current snapshot.
type DataCompleteness struct {
	HasMarket      bool `json:"hasMarket"`
	HasProbability bool `json:"hasProbability"`
	HasScore       bool `json:"hasScore"`
}

// UnifiedEvent is the canonical per-game record owned by the event store.
type UnifiedEvent struct {
	EventID          string              `json:"eventId"`
	HomeTeam         CanonicalID         `json:"homeTeam"`
	AwayTeam         CanonicalID         `json:"awayTeam"`
	HomeScore        int                 `json:"homeScore"`
	AwayScore        int                 `json:"awayScore"`
	LifecycleState   LifecycleState      `json:"lifecycleState"`
	StatusText       string              `json:"statusText"`
	Period           int                 `json:"period"`
	PeriodLabel      string              `json:"periodLabel"`
	Clock            string              `json:"clock"`
	StartTime        time.Time           `json:"startTime"`
	Market           *MarketQuote        `json:"market,omitempty"`
	Probability      *ProbabilityReading `json:"probability,omitempty"`
	DataCompleteness DataCompleteness    `json:"dataCompleteness"`
	Signals          []Signal            `json:"signals"`
	LastUpdate       time.Time           `json:"lastUpdate"`
}

// ScoreDiff is home minus away.
func (e UnifiedEvent) ScoreDiff() int {
	return e.HomeScore - e.AwayScore
}

// LeadFor is how many points the given side is ahead (negative when trailing).
func (e UnifiedEvent) LeadFor(side Side) int {
	if side == SideAway {
		return -e.ScoreDiff()
	}
	return e.ScoreDiff()
}

// TeamFor returns the canonical id playing on the given side.
func (e UnifiedEvent) TeamFor(side Side) CanonicalID {
	if side == SideAway {
		return e.AwayTeam
	}
	return e.HomeTeam
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (e UnifiedEvent) Clone() UnifiedEvent {
	out := e
	if e.Market != nil {
		m := *e.Market
		out.Market = &m
	}
	if e.Probability != nil {
		p := *e.Probability
		p.Injuries = append([]InjuryNote(nil), e.Probability.Injuries...)
		out.Probability = &p
	}
	out.Signals = append(make([]Signal, 0, len(e.Signals)), e.Signals...)
	return out
}
