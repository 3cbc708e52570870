package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
)

const (
	DefaultFinalRetention = time.Hour
	DefaultStaleAfter     = 30 * time.Minute
	DefaultMaxUnseen      = 6 * time.Hour
)

// Matchup identifies who plays and when.
type Matchup struct {
	HomeTeam  models.CanonicalID
	AwayTeam  models.CanonicalID
	StartTime time.Time
}

// Score is the primary source's view of the game state.
type Score struct {
	Home        int
	Away        int
	Period      int
	PeriodLabel string
	Clock       string
	StatusText  string
}

// MarketLeg replaces the market quote; a nil Quote clears it.
type MarketLeg struct {
	Quote *models.MarketQuote
}

// ProbabilityLeg replaces the probability reading; a nil Reading clears it.
type ProbabilityLeg struct {
	Reading *models.ProbabilityReading
}

// EventPatch is a partial update. Nil legs are left untouched; set legs fully
// replace the previous value.
type EventPatch struct {
	Matchup     *Matchup
	Score       *Score
	Lifecycle   *models.LifecycleState
	Market      *MarketLeg
	Probability *ProbabilityLeg
}

func (p EventPatch) fromPrimary() bool {
	return p.Matchup != nil || p.Score != nil || p.Lifecycle != nil
}

type eventRecord struct {
	ev          models.UnifiedEvent
	scoreSeen   bool
	everMatched bool
	lastSeen    time.Time
	finalizedAt time.Time
}

// EventStoreOption configures EventStore.
type EventStoreOption func(*EventStore)

func WithStoreClock(now func() time.Time) EventStoreOption {
	return func(s *EventStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetention overrides how long FINAL events and never-matched stale
// events are kept.
func WithRetention(final, stale time.Duration) EventStoreOption {
	return func(s *EventStore) {
		if final > 0 {
			s.finalRetention = final
		}
		if stale > 0 {
			s.staleAfter = stale
		}
	}
}

func WithMaxUnseen(d time.Duration) EventStoreOption {
	return func(s *EventStore) {
		if d > 0 {
			s.maxUnseen = d
		}
	}
}

// EventStore is the in-memory table of unified events. A single RWMutex
// guards the whole map; readers always get deep copies.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]*eventRecord

	now            func() time.Time
	finalRetention time.Duration
	staleAfter     time.Duration
	maxUnseen      time.Duration
}

var _ domrepo.EventReader = (*EventStore)(nil)

func NewEventStore(opts ...EventStoreOption) *EventStore {
	s := &EventStore{
		events:         make(map[string]*eventRecord),
		now:            time.Now,
		finalRetention: DefaultFinalRetention,
		staleAfter:     DefaultStaleAfter,
		maxUnseen:      DefaultMaxUnseen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert applies patch to the event, creating it when the patch carries a
// matchup. lastUpdate is bumped on every call.
func (s *EventStore) Upsert(eventID string, patch EventPatch) error {
	if eventID == "" {
		return fmt.Errorf("upsert: empty event id: %w", models.ErrInvariant)
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		if patch.Matchup == nil {
			return fmt.Errorf("upsert %s: unknown event without matchup: %w", eventID, models.ErrNotFound)
		}
		rec = &eventRecord{ev: models.UnifiedEvent{
			EventID:        eventID,
			LifecycleState: models.StateScheduled,
			Signals:        []models.Signal{},
		}}
		s.events[eventID] = rec
	}

	ev := &rec.ev
	if m := patch.Matchup; m != nil {
		ev.HomeTeam = m.HomeTeam
		ev.AwayTeam = m.AwayTeam
		ev.StartTime = m.StartTime
	}
	if sc := patch.Score; sc != nil {
		ev.HomeScore = sc.Home
		ev.AwayScore = sc.Away
		ev.Period = sc.Period
		ev.PeriodLabel = sc.PeriodLabel
		ev.Clock = sc.Clock
		ev.StatusText = sc.StatusText
		rec.scoreSeen = true
	}
	if st := patch.Lifecycle; st != nil && st.Valid() {
		ev.LifecycleState = *st
		if *st == models.StateFinal && rec.finalizedAt.IsZero() {
			rec.finalizedAt = now
		}
	}
	if leg := patch.Market; leg != nil {
		if leg.Quote != nil {
			q := *leg.Quote
			ev.Market = &q
			rec.everMatched = true
		} else {
			ev.Market = nil
		}
	}
	if leg := patch.Probability; leg != nil {
		if leg.Reading != nil {
			r := *leg.Reading
			r.Injuries = append([]models.InjuryNote(nil), leg.Reading.Injuries...)
			ev.Probability = &r
		} else {
			ev.Probability = nil
		}
	}
	if patch.fromPrimary() {
		rec.lastSeen = now
	}

	ev.DataCompleteness = models.DataCompleteness{
		HasMarket:      ev.Market != nil,
		HasProbability: ev.Probability != nil,
		HasScore:       rec.scoreSeen && ev.LifecycleState != models.StateScheduled,
	}
	ev.LastUpdate = now
	return nil
}

// SetSignals attaches the latest engine output. It does not bump lastUpdate,
// which the signals themselves were computed against.
func (s *EventStore) SetSignals(eventID string, signals []models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("set signals %s: %w", eventID, models.ErrNotFound)
	}
	rec.ev.Signals = append(make([]models.Signal, 0, len(signals)), signals...)
	return nil
}

func (s *EventStore) Get(eventID string) (models.UnifiedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.events[eventID]
	if !ok {
		return models.UnifiedEvent{}, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	return rec.ev.Clone(), nil
}

// List returns matching events ordered by start time, then id.
func (s *EventStore) List(filter domrepo.EventFilter) []models.UnifiedEvent {
	s.mu.RLock()
	out := make([]models.UnifiedEvent, 0, len(s.events))
	for _, rec := range s.events {
		if filter.Matches(rec.ev) {
			out = append(out, rec.ev.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func (s *EventStore) ListWithSignals() []models.UnifiedEvent {
	has := true
	return s.List(domrepo.EventFilter{HasSignals: &has})
}

func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// ClearUnreported drops the market and probability legs and the signals of
// every non-FINAL event missing from reported, the ids the primary source
// returned this cycle. Score and lifecycle are kept. It returns the ids
// that changed.
func (s *EventStore) ClearUnreported(reported map[string]struct{}) []string {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared []string
	for id, rec := range s.events {
		if _, ok := reported[id]; ok {
			continue
		}
		ev := &rec.ev
		if ev.LifecycleState == models.StateFinal {
			continue
		}
		if ev.Market == nil && ev.Probability == nil && len(ev.Signals) == 0 {
			continue
		}
		ev.Market = nil
		ev.Probability = nil
		ev.Signals = []models.Signal{}
		ev.DataCompleteness.HasMarket = false
		ev.DataCompleteness.HasProbability = false
		ev.LastUpdate = now
		cleared = append(cleared, id)
	}
	sort.Strings(cleared)
	return cleared
}

// Evict drops FINAL events past their retention, never-matched events the
// primary source stopped reporting, and anything unseen for too long.
// It returns the evicted ids.
func (s *EventStore) Evict(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, rec := range s.events {
		unseen := now.Sub(rec.lastSeen)
		switch {
		case !rec.finalizedAt.IsZero() && now.Sub(rec.finalizedAt) >= s.finalRetention:
		case !rec.everMatched && unseen >= s.staleAfter:
		case unseen >= s.maxUnseen:
		default:
			continue
		}
		delete(s.events, id)
		evicted = append(evicted, id)
	}
	sort.Strings(evicted)
	return evicted
}
