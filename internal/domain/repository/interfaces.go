package repository

import (
	"context"
	"time"

	"CourtArb/internal/domain/models"
)

// ScheduleSource is the primary schedule/score feed.
type ScheduleSource interface {
	ListEvents(ctx context.Context, date time.Time) ([]models.RawEvent, error)
}

// ProbabilitySource is the win-probability/injury feed.
type ProbabilitySource interface {
	GetProbability(ctx context.Context, eventRef string) (*models.RawProbability, error)
}

// MarketSource is the prediction-market feed.
type MarketSource interface {
	ListOpenMarkets(ctx context.Context, sportTag string) ([]models.RawMarketEvent, error)
}

// EventReader is the read side of the unified event store exposed downstream.
type EventReader interface {
	Get(eventID string) (models.UnifiedEvent, error)
	List(filter EventFilter) []models.UnifiedEvent
	ListWithSignals() []models.UnifiedEvent
	Len() int
}

// EventFilter narrows List results; zero values match everything.
type EventFilter struct {
	State      models.LifecycleState
	HasSignals *bool
}

// Matches reports whether ev passes the filter.
func (f EventFilter) Matches(ev models.UnifiedEvent) bool {
	if f.State != "" && ev.LifecycleState != f.State {
		return false
	}
	if f.HasSignals != nil && (len(ev.Signals) > 0) != *f.HasSignals {
		return false
	}
	return true
}

// SnapshotHook is notified once per completed cycle with the full store snapshot.
type SnapshotHook interface {
	Name() string
	OnSnapshot(ctx context.Context, events []models.UnifiedEvent) error
}

// SignalStorage persists signal history.
type SignalStorage interface {
	StoreSignals(ctx context.Context, signals []models.Signal) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordCycle(seconds float64, events int)
	RecordSkippedTick()
	RecordEnrichment(leg, outcome string)
	RecordSignal(side, direction string)
	RecordStoreSize(n int)
	RecordCacheResult(cache, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
