package models

// SourceName tags one of the upstream feeds.
type SourceName string

const (
	SourceScoreboard SourceName = "scoreboard" // primary schedule/score feed
	SourceWinProb    SourceName = "winprob"    // win probability + injuries
	SourceMarket     SourceName = "polymarket" // prediction market prices
)

// Sources lists every known source in a stable order.
func Sources() []SourceName {
	return []SourceName{SourceScoreboard, SourceWinProb, SourceMarket}
}

// CanonicalID is the stable team identifier (league abbreviation, e.g. "BOS").
type CanonicalID string

// TeamIdentity is loaded once at startup and never mutated.
type TeamIdentity struct {
	CanonicalID   CanonicalID           `json:"canonicalId"`
	DisplayNames  map[SourceName]string `json:"displayNames"`
	MatchKeywords []string              `json:"matchKeywords"`
}

// DisplayName returns the team's spelling in the given source.
func (t TeamIdentity) DisplayName(source SourceName) string {
	return t.DisplayNames[source]
}
