package service

import (
	"time"

	"CourtArb/internal/domain/models"
)

// TeamResolver maps a source-specific team name onto its canonical identity.
type TeamResolver interface {
	Resolve(source models.SourceName, rawName string) (models.CanonicalID, error)
	Team(id models.CanonicalID) (models.TeamIdentity, bool)
	Mentions(text string, id models.CanonicalID) bool
	MentionsSlug(slug string, id models.CanonicalID) bool
}

// SignalEngine derives trading signals from a unified event. Implementations are pure.
type SignalEngine interface {
	Compute(event models.UnifiedEvent) []models.Signal
}

// MarketMatcher reconciles a canonical matchup against one market snapshot.
type MarketMatcher interface {
	Reconcile(home, away models.CanonicalID, referenceTime time.Time) (*models.MarketQuote, error)
}
