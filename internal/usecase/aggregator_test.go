package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	"CourtArb/internal/repository"
	"CourtArb/internal/services/identity"
	"CourtArb/internal/services/signals"
	"CourtArb/pkg/cache"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeSchedule struct {
	mu      sync.Mutex
	events  []models.RawEvent
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSchedule) ListEvents(ctx context.Context, _ time.Time) ([]models.RawEvent, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RawEvent(nil), f.events...), f.err
}

type fakeProbability struct {
	mu       sync.Mutex
	readings map[string]*models.RawProbability
	errs     map[string]error
	hang     map[string]bool
	calls    int32
}

func (f *fakeProbability) GetProbability(ctx context.Context, ref string) (*models.RawProbability, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	hang, err, r := f.hang[ref], f.errs[ref], f.readings[ref]
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type recordingHook struct {
	name  string
	err   error
	mu    sync.Mutex
	snaps [][]models.UnifiedEvent
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnSnapshot(_ context.Context, events []models.UnifiedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snaps = append(h.snaps, events)
	return h.err
}

type countingMetrics struct {
	nopMetrics
	mu          sync.Mutex
	skipped     int
	enrichments map[string]int
}

func (m *countingMetrics) RecordSkippedTick() {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordEnrichment(leg, outcome string) {
	m.mu.Lock()
	if m.enrichments == nil {
		m.enrichments = map[string]int{}
	}
	m.enrichments[leg+":"+outcome]++
	m.mu.Unlock()
}

type harness struct {
	schedule *fakeSchedule
	prob     *fakeProbability
	markets  *fakeMarkets
	store    *repository.EventStore
	hooks    []*recordingHook
	metrics  *countingMetrics
	agg      *Aggregator
}

func newHarness(cfg AggregatorConfig) *harness {
	now := func() time.Time { return tipOff.Add(90 * time.Minute) }
	h := &harness{
		schedule: &fakeSchedule{events: []models.RawEvent{
			{ID: "g1", HomeTeamName: "Boston Celtics", AwayTeamName: "Detroit Pistons", HomeScore: 58, AwayScore: 50,
				State: models.StateLive, Period: 3, Clock: "6:00", StartTime: tipOff},
			{ID: "g2", HomeTeamName: "LA Clippers", AwayTeamName: "Philadelphia 76ers",
				State: models.StateScheduled, StartTime: tipOff.Add(3 * time.Hour)},
			{ID: "g3", HomeTeamName: "Gotham Rogues", AwayTeamName: "Detroit Pistons", State: models.StateLive, StartTime: tipOff},
			{ID: "g4", HomeTeamName: "Miami Heat", AwayTeamName: "Orlando Magic", HomeScore: 101, AwayScore: 99,
				State: models.StateFinal, StartTime: tipOff.Add(-3 * time.Hour)},
		}},
		prob: &fakeProbability{readings: map[string]*models.RawProbability{
			// source lists the teams the other way round
			"g1": {HomeTeamName: "Pistons", AwayTeamName: "Celtics", LiveHome: 0.30, LiveAvailable: true,
				PregameHome: 0.35, PregameAway: 0.65, PregameAvailable: true,
				Injuries: []models.RawInjury{{TeamName: "Celtics", Player: "Jrue Holiday", Status: "Out"}, {TeamName: "Nobody", Player: "x"}}},
			"g2": {HomeTeamName: "Clippers", AwayTeamName: "76ers", PregameHome: 0.55, PregameAway: 0.45, PregameAvailable: true},
		}},
		markets: &fakeMarkets{events: []models.RawMarketEvent{
			marketEvent("pm1", "Pistons vs. Celtics", tipOff.Add(-48*time.Hour), tipOff.Add(3*time.Hour),
				winner("m1", []string{"Pistons", "Celtics"}, []float64{0.20, 0.80}, 12000)),
		}},
		metrics: &countingMetrics{},
		hooks:   []*recordingHook{{name: "first", err: errors.New("downstream offline")}, {name: "second"}},
	}

	teams := identity.NewNBAResolver()
	mc := cache.NewMemoryCache(cache.WithMemoryClock(now))
	h.store = repository.NewEventStore(repository.WithStoreClock(now))

	hooks := make([]domrepo.SnapshotHook, 0, len(h.hooks))
	for _, hk := range h.hooks {
		hooks = append(hooks, hk)
	}
	h.agg = NewAggregator(cfg, AggregatorDeps{
		Schedule:    h.schedule,
		Probability: h.prob,
		Reconciler:  NewReconciler(h.markets, mc, teams),
		Teams:       teams,
		Engine:      signals.NewEngine(),
		Store:       h.store,
		Cache:       mc,
		Hooks:       hooks,
		Metrics:     h.metrics,
		Now:         now,
	})
	return h
}

func TestAggregator_RunCycle(t *testing.T) {
	Convey("Given an aggregator over fake sources", t, func() {
		ctx := context.Background()
		h := newHarness(AggregatorConfig{CallTimeout: 200 * time.Millisecond})

		Convey("When a cycle runs", func() {
			rep := h.agg.RunCycle(ctx)

			Convey("Then unresolvable events are skipped and final ones not enriched", func() {
				So(rep.Err, ShouldBeNil)
				So(rep.Scheduled, ShouldEqual, 4)
				So(rep.Active, ShouldEqual, 2)
				So(h.store.Len(), ShouldEqual, 3)
				_, err := h.store.Get("g3")
				So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)

				final, _ := h.store.Get("g4")
				So(final.LifecycleState, ShouldEqual, models.StateFinal)
				So(final.PeriodLabel, ShouldEqual, "FINAL")
				So(final.DataCompleteness.HasMarket, ShouldBeFalse)
			})

			Convey("Then the live game is fully merged and oriented", func() {
				ev, err := h.store.Get("g1")
				So(err, ShouldBeNil)
				So(ev.PeriodLabel, ShouldEqual, "Q3")
				So(ev.DataCompleteness, ShouldResemble, models.DataCompleteness{HasMarket: true, HasProbability: true, HasScore: true})
				So(ev.Market.HomePrice, ShouldEqual, 0.80)
				So(ev.Probability.HomeWinProb, ShouldAlmostEqual, 0.70, 1e-9)
				So(ev.Probability.PregameHomeWinProb, ShouldAlmostEqual, 0.65, 1e-9)
				So(len(ev.Probability.Injuries), ShouldEqual, 1)
				So(ev.Probability.Injuries[0].Team, ShouldEqual, models.CanonicalID("BOS"))

				var sellHome int
				for _, s := range ev.Signals {
					if s.Side == models.SideHome && s.Direction == models.DirectionSell {
						sellHome++
					}
				}
				So(sellHome, ShouldEqual, 1)
			})

			Convey("Then a game without a market has only its probability leg", func() {
				ev, _ := h.store.Get("g2")
				So(ev.DataCompleteness.HasMarket, ShouldBeFalse)
				So(ev.DataCompleteness.HasProbability, ShouldBeTrue)
				So(ev.Signals, ShouldBeEmpty)
				So(h.metrics.enrichments["market:not_found"], ShouldEqual, 1)
			})

			Convey("Then every hook sees the snapshot even when one fails", func() {
				So(len(h.hooks[0].snaps), ShouldEqual, 1)
				So(len(h.hooks[1].snaps), ShouldEqual, 1)
				So(len(h.hooks[1].snaps[0]), ShouldEqual, 3)
			})

			Convey("Then probability readings are served from cache on the next cycle", func() {
				before := atomic.LoadInt32(&h.prob.calls)
				h.agg.RunCycle(ctx)
				So(atomic.LoadInt32(&h.prob.calls), ShouldEqual, before)
			})
		})

		Convey("When the schedule source fails", func() {
			h.schedule.err = models.ErrUpstreamUnavailable
			rep := h.agg.RunCycle(ctx)

			Convey("Then the cycle ends quietly without publishing", func() {
				So(errors.Is(rep.Err, models.ErrUpstreamUnavailable), ShouldBeTrue)
				So(h.store.Len(), ShouldEqual, 0)
				So(len(h.hooks[1].snaps), ShouldEqual, 0)
			})
		})

		Convey("When the market source starts failing after a good cycle", func() {
			h.agg.RunCycle(ctx)
			h.markets.mu.Lock()
			h.markets.err = models.ErrUpstreamUnavailable
			h.markets.mu.Unlock()
			_ = h.agg.deps.Cache.Delete(ctx, cache.GenerateKeyWithParams("polymarket", "events", DefaultSportTag))
			h.agg.RunCycle(ctx)

			Convey("Then the stale market leg is cleared and signals drop", func() {
				ev, _ := h.store.Get("g1")
				So(ev.Market, ShouldBeNil)
				So(ev.DataCompleteness.HasMarket, ShouldBeFalse)
				So(ev.DataCompleteness.HasProbability, ShouldBeTrue)
				So(ev.Signals, ShouldBeEmpty)
			})
		})

		Convey("When a live game drops off the schedule after a good cycle", func() {
			h.agg.RunCycle(ctx)
			before, _ := h.store.Get("g1")
			So(before.Signals, ShouldNotBeEmpty)

			h.schedule.mu.Lock()
			full := h.schedule.events
			h.schedule.events = append([]models.RawEvent(nil), full[1:]...)
			h.schedule.mu.Unlock()
			rep := h.agg.RunCycle(ctx)
			again := h.agg.RunCycle(ctx)

			Convey("Then its legs and signals are cleared but its score is kept", func() {
				So(rep.Unreported, ShouldEqual, 1)
				So(again.Unreported, ShouldEqual, 0)
				ev, err := h.store.Get("g1")
				So(err, ShouldBeNil)
				So(ev.LifecycleState, ShouldEqual, models.StateLive)
				So(ev.HomeScore, ShouldEqual, 58)
				So(ev.Market, ShouldBeNil)
				So(ev.Probability, ShouldBeNil)
				So(ev.DataCompleteness.HasMarket, ShouldBeFalse)
				So(ev.DataCompleteness.HasProbability, ShouldBeFalse)
				So(ev.Signals, ShouldBeEmpty)

				final, _ := h.store.Get("g4")
				So(final.LifecycleState, ShouldEqual, models.StateFinal)
			})

			Convey("Then it is enriched again once the schedule reports it", func() {
				h.schedule.mu.Lock()
				h.schedule.events = full
				h.schedule.mu.Unlock()
				h.agg.RunCycle(ctx)

				ev, _ := h.store.Get("g1")
				So(ev.DataCompleteness.HasMarket, ShouldBeTrue)
				So(ev.DataCompleteness.HasProbability, ShouldBeTrue)
				So(ev.Signals, ShouldNotBeEmpty)
			})
		})

		Convey("When one probability call hangs", func() {
			h.prob.hang = map[string]bool{"g1": true}
			rep := h.agg.RunCycle(ctx)

			Convey("Then only that leg is lost", func() {
				So(rep.Readings, ShouldEqual, 1)
				ev, _ := h.store.Get("g1")
				So(ev.DataCompleteness.HasProbability, ShouldBeFalse)
				So(ev.DataCompleteness.HasMarket, ShouldBeTrue)
				So(h.metrics.enrichments["probability:timeout"], ShouldEqual, 1)
			})
		})

		Convey("When the probability reading is for another game", func() {
			h.prob.readings["g2"] = &models.RawProbability{HomeTeamName: "Lakers", AwayTeamName: "76ers"}
			h.agg.RunCycle(ctx)
			ev, _ := h.store.Get("g2")
			So(ev.DataCompleteness.HasProbability, ShouldBeFalse)
			So(h.metrics.enrichments["probability:data_shape"], ShouldEqual, 1)
		})
	})
}

func TestAggregator_SkipsOverlappingTicks(t *testing.T) {
	h := newHarness(AggregatorConfig{})
	h.schedule.block = make(chan struct{})
	h.schedule.started = make(chan struct{}, 1)

	ctx := context.Background()
	var wg sync.WaitGroup
	if !h.agg.tick(ctx, &wg) {
		t.Fatal("first tick should start a cycle")
	}
	<-h.schedule.started

	if h.agg.tick(ctx, &wg) {
		t.Fatal("second tick should be skipped while the first cycle runs")
	}
	close(h.schedule.block)
	wg.Wait()

	if h.metrics.skipped != 1 {
		t.Fatalf("expected 1 skipped tick, got %d", h.metrics.skipped)
	}
	if !h.agg.tick(ctx, &wg) {
		t.Fatal("tick after completion should start a cycle")
	}
	<-h.schedule.started
	wg.Wait()
}

func TestAggregator_RunStopsOnCancel(t *testing.T) {
	h := newHarness(AggregatorConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.agg.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.store.Len() == 0 {
		t.Fatal("expected at least one cycle to have run")
	}
}
