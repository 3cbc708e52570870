package identity

import (
	"fmt"
	"sort"

	"CourtArb/internal/domain/models"
)

// Resolver implements service.TeamResolver over an immutable team table.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	teams []models.TeamIdentity // sorted by canonical id
	byID  map[models.CanonicalID]models.TeamIdentity
	exact map[models.SourceName]map[string]models.CanonicalID
}

// NewResolver indexes the given identities.
func NewResolver(teams []models.TeamIdentity) *Resolver {
	r := &Resolver{
		teams: append([]models.TeamIdentity(nil), teams...),
		byID:  make(map[models.CanonicalID]models.TeamIdentity, len(teams)),
		exact: make(map[models.SourceName]map[string]models.CanonicalID),
	}
	sort.Slice(r.teams, func(i, j int) bool { return r.teams[i].CanonicalID < r.teams[j].CanonicalID })

	for _, t := range r.teams {
		r.byID[t.CanonicalID] = t
		for source, name := range t.DisplayNames {
			if r.exact[source] == nil {
				r.exact[source] = make(map[string]models.CanonicalID)
			}
			r.exact[source][Normalize(name)] = t.CanonicalID
		}
	}
	return r
}

// NewNBAResolver is a resolver over the built-in NBA table.
func NewNBAResolver() *Resolver {
	return NewResolver(NBATeams())
}

// Resolve tries an exact match on the source's display name first, then a
// keyword containment match in either direction. Zero or several containment
// hits fail closed with models.ErrNotFound.
func (r *Resolver) Resolve(source models.SourceName, rawName string) (models.CanonicalID, error) {
	name := Normalize(rawName)
	if name == "" {
		return "", fmt.Errorf("resolve %s: empty name: %w", source, models.ErrNotFound)
	}

	if id, ok := r.exact[source][name]; ok {
		return id, nil
	}

	var hit models.CanonicalID
	hits := 0
	for _, t := range r.teams {
		if matchesKeywords(name, t.MatchKeywords) {
			hit = t.CanonicalID
			hits++
		}
	}
	if hits == 1 {
		return hit, nil
	}
	if hits > 1 {
		return "", fmt.Errorf("resolve %s %q: ambiguous (%d teams): %w", source, rawName, hits, models.ErrNotFound)
	}
	return "", fmt.Errorf("resolve %s %q: %w", source, rawName, models.ErrNotFound)
}

func matchesKeywords(name string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(name, kw) || containsPhrase(kw, name) {
			return true
		}
	}
	return false
}

// Team looks up a canonical identity.
func (r *Resolver) Team(id models.CanonicalID) (models.TeamIdentity, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Teams returns every identity ordered by canonical id.
func (r *Resolver) Teams() []models.TeamIdentity {
	return append([]models.TeamIdentity(nil), r.teams...)
}

// Mentions reports whether free text (a market title, an outcome label)
// names the team by one of its keywords.
func (r *Resolver) Mentions(text string, id models.CanonicalID) bool {
	t, ok := r.byID[id]
	if !ok {
		return false
	}
	norm := Normalize(text)
	for _, kw := range t.MatchKeywords {
		if containsPhrase(norm, kw) {
			return true
		}
	}
	return false
}

// MentionsSlug reports whether a URL slug carries the team's abbreviation
// or one of its keywords ("nba-bos-det-2025-01-15").
func (r *Resolver) MentionsSlug(slug string, id models.CanonicalID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	if containsPhrase(Normalize(slug), Normalize(string(id))) {
		return true
	}
	return r.Mentions(slug, id)
}
