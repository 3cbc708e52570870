package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"CourtArb/internal/domain/models"
	drepo "CourtArb/internal/domain/repository"
	"CourtArb/internal/domain/service"
	"CourtArb/internal/services/identity"
	"CourtArb/pkg/cache"
	applogger "CourtArb/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultSportTag    = "nba"
	DefaultSnapshotTTL = 45 * time.Second
)

// excludedMarketTerms mark derivative markets (spreads, totals, partial
// periods). Matched as whole normalized tokens against question and slug.
var excludedMarketTerms = []string{
	"spread", "handicap", "total", "totals", "o u", "over under", "points",
	"quarter", "q1", "q2", "q3", "q4", "1q", "2q", "3q", "4q",
	"half", "halftime", "1h", "2h", "1st", "2nd", "3rd", "4th",
}

// ReconcilerOption configures Reconciler.
type ReconcilerOption func(*Reconciler)

func WithSportTag(tag string) ReconcilerOption {
	return func(r *Reconciler) {
		if tag != "" {
			r.sportTag = tag
		}
	}
}

func WithSnapshotTTL(ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithReconcilerLogger(l *applogger.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.l = l
		}
	}
}

func WithReconcilerMetrics(m drepo.Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Reconciler matches canonical matchups against the prediction-market source.
type Reconciler struct {
	source   drepo.MarketSource
	cache    cache.Service
	teams    service.TeamResolver
	l        *applogger.Logger
	metrics  drepo.Metrics
	sportTag string
	ttl      time.Duration
	group    singleflight.Group
}

func NewReconciler(source drepo.MarketSource, c cache.Service, teams service.TeamResolver, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		source:   source,
		cache:    c,
		teams:    teams,
		l:        applogger.NewNop(),
		metrics:  nopMetrics{},
		sportTag: DefaultSportTag,
		ttl:      DefaultSnapshotTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot performs the scope lock: the open market-events for the sport,
// served from cache when fresh. Concurrent misses share one upstream call.
func (r *Reconciler) Snapshot(ctx context.Context) (*MarketSnapshot, error) {
	key := cache.GenerateKeyWithParams("polymarket", "events", r.sportTag)

	if r.cache != nil {
		var events []models.RawMarketEvent
		err := r.cache.Get(ctx, key, &events)
		if err == nil {
			r.metrics.RecordCacheResult("markets", "hit")
			return NewMarketSnapshot(events, r.teams, r.l), nil
		}
		r.metrics.RecordCacheResult("markets", "miss")
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		events, err := r.source.ListOpenMarkets(ctx, r.sportTag)
		r.metrics.RecordLatency("list_markets", time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		open := make([]models.RawMarketEvent, 0, len(events))
		for _, ev := range events {
			if ev.Open() {
				open = append(open, ev)
			}
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, key, open, r.ttl); err != nil {
				r.l.Warn("market snapshot not cached", applogger.String("key", key), applogger.Error(err))
			}
		}
		return open, nil
	})
	if err != nil {
		return nil, fmt.Errorf("market snapshot: %w", err)
	}
	return NewMarketSnapshot(v.([]models.RawMarketEvent), r.teams, r.l), nil
}

// Reconcile is Snapshot followed by MarketSnapshot.Reconcile.
func (r *Reconciler) Reconcile(ctx context.Context, home, away models.CanonicalID, referenceTime time.Time) (*models.MarketQuote, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Reconcile(home, away, referenceTime)
}

// MarketSnapshot is an immutable view of the open market-events taken once
// per cycle, so every event in the cycle is matched against the same data.
type MarketSnapshot struct {
	events []models.RawMarketEvent
	teams  service.TeamResolver
	l      *applogger.Logger
}

var _ service.MarketMatcher = (*MarketSnapshot)(nil)

func NewMarketSnapshot(events []models.RawMarketEvent, teams service.TeamResolver, l *applogger.Logger) *MarketSnapshot {
	if l == nil {
		l = applogger.NewNop()
	}
	open := make([]models.RawMarketEvent, 0, len(events))
	for _, ev := range events {
		if ev.Open() {
			open = append(open, ev)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return &MarketSnapshot{events: open, teams: teams, l: l}
}

func (s *MarketSnapshot) Len() int { return len(s.events) }

// Reconcile runs name anchor, temporal validation, market selection and
// price assignment. Every failure is models.ErrNotFound.
func (s *MarketSnapshot) Reconcile(home, away models.CanonicalID, referenceTime time.Time) (*models.MarketQuote, error) {
	if home == "" || away == "" || home == away {
		return nil, fmt.Errorf("reconcile %s-%s: invalid matchup: %w", home, away, models.ErrNotFound)
	}
	if referenceTime.IsZero() {
		return nil, fmt.Errorf("reconcile %s-%s: no reference time: %w", home, away, models.ErrNotFound)
	}

	ev, closeAt, named := s.anchor(home, away, referenceTime)
	switch {
	case named == 0:
		return nil, fmt.Errorf("reconcile %s-%s: no open market-event names both teams: %w", home, away, models.ErrNotFound)
	case closeAt.IsZero():
		return nil, fmt.Errorf("reconcile %s-%s: none of %d market-events closes at or after start %s: %w",
			home, away, named, referenceTime.Format(time.RFC3339), models.ErrNotFound)
	}

	for _, m := range s.winnerMarkets(ev) {
		hi, ai, ok := s.assign(m, home, away)
		if !ok {
			continue
		}
		q := &models.MarketQuote{
			MarketID:        m.ID,
			EventSlug:       ev.Slug,
			Question:        m.Question,
			HomeTeam:        home,
			AwayTeam:        away,
			HomePrice:       m.Prices[hi],
			AwayPrice:       m.Prices[ai],
			Liquidity:       m.Liquidity,
			Volume:          m.Volume,
			MarketCloseTime: closeAt,
		}
		if q.Liquidity == 0 {
			q.Liquidity = ev.Liquidity
		}
		if !q.PricesConsistent() {
			q.PriceFlagged = true
			s.l.Warn("market prices violate sum invariant",
				applogger.String("market_id", q.MarketID),
				applogger.Float64("home_price", q.HomePrice),
				applogger.Float64("away_price", q.AwayPrice),
				applogger.Float64("deviation", q.PriceDeviation()),
				applogger.Error(models.ErrInvariant),
			)
		}
		return q, nil
	}
	return nil, fmt.Errorf("reconcile %s-%s: market-event %s has no assignable winner market: %w", home, away, ev.ID, models.ErrNotFound)
}

// anchor picks, among the market-events naming both teams, the one closing
// soonest at or after referenceTime; a later start breaks ties. It also
// reports how many events named both teams. A zero close time means no
// candidate survived temporal validation.
func (s *MarketSnapshot) anchor(home, away models.CanonicalID, referenceTime time.Time) (models.RawMarketEvent, time.Time, int) {
	var (
		best      models.RawMarketEvent
		bestClose time.Time
		named     int
	)
	for _, ev := range s.events {
		if !s.names(ev, home) || !s.names(ev, away) {
			continue
		}
		named++
		closeAt := closeTime(ev)
		if closeAt.IsZero() || closeAt.Before(referenceTime) {
			continue
		}
		if bestClose.IsZero() || closeAt.Before(bestClose) ||
			(closeAt.Equal(bestClose) && ev.StartDate.After(best.StartDate)) {
			best, bestClose = ev, closeAt
		}
	}
	return best, bestClose, named
}

func (s *MarketSnapshot) names(ev models.RawMarketEvent, id models.CanonicalID) bool {
	return s.teams.Mentions(ev.Title, id) || s.teams.MentionsSlug(ev.Slug, id)
}

// winnerMarkets filters out derivative markets and orders the rest: two
// outcomes first, then deeper liquidity, then id.
func (s *MarketSnapshot) winnerMarkets(ev models.RawMarketEvent) []models.RawMarket {
	var out []models.RawMarket
	for _, m := range ev.Markets {
		if m.Closed || len(m.Outcomes) < 2 || len(m.Outcomes) != len(m.Prices) {
			continue
		}
		if derivative(m.Question) || derivative(m.Slug) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := len(out[i].Outcomes) == 2, len(out[j].Outcomes) == 2
		if bi != bj {
			return bi
		}
		if out[i].Liquidity != out[j].Liquidity {
			return out[i].Liquidity > out[j].Liquidity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// assign finds the outcome naming each team. Each team must be named by
// exactly one outcome that does not also name the other team.
func (s *MarketSnapshot) assign(m models.RawMarket, home, away models.CanonicalID) (hi, ai int, ok bool) {
	hi, ai = -1, -1
	for i, label := range m.Outcomes {
		h, a := s.teams.Mentions(label, home), s.teams.Mentions(label, away)
		switch {
		case h && a:
			return 0, 0, false
		case h:
			if hi >= 0 {
				return 0, 0, false
			}
			hi = i
		case a:
			if ai >= 0 {
				return 0, 0, false
			}
			ai = i
		}
	}
	return hi, ai, hi >= 0 && ai >= 0
}

func derivative(text string) bool {
	norm := " " + identity.Normalize(text) + " "
	for _, term := range excludedMarketTerms {
		if strings.Contains(norm, " "+term+" ") {
			return true
		}
	}
	return false
}

// closeTime is the event's end date, falling back to its latest market end date.
func closeTime(ev models.RawMarketEvent) time.Time {
	if !ev.EndDate.IsZero() {
		return ev.EndDate
	}
	var latest time.Time
	for _, m := range ev.Markets {
		if m.EndDate.After(latest) {
			latest = m.EndDate
		}
	}
	return latest
}
