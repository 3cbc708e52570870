package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	domsvc "CourtArb/internal/domain/service"
	"CourtArb/internal/repository"
	"CourtArb/internal/services/signals"
	"CourtArb/pkg/cache"
	applogger "CourtArb/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig holds the loop timings.
type AggregatorConfig struct {
	Interval       time.Duration
	CallTimeout    time.Duration
	HookTimeout    time.Duration
	MaxConcurrency int
	ProbabilityTTL time.Duration
	SweepInterval  time.Duration
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Interval:       5 * time.Second,
		CallTimeout:    8 * time.Second,
		HookTimeout:    5 * time.Second,
		MaxConcurrency: 16,
		ProbabilityTTL: 10 * time.Second,
		SweepInterval:  60 * time.Second,
	}
}

// AggregatorDeps groups the collaborators of one aggregation loop.
type AggregatorDeps struct {
	Schedule    domrepo.ScheduleSource
	Probability domrepo.ProbabilitySource
	Reconciler  *Reconciler
	Teams       domsvc.TeamResolver
	Engine      domsvc.SignalEngine
	Store       *repository.EventStore
	Cache       cache.Service
	Hooks       []domrepo.SnapshotHook
	Metrics     domrepo.Metrics
	Logger      *applogger.Logger
	Now         func() time.Time
}

// CycleReport summarises one completed cycle.
type CycleReport struct {
	Scheduled  int
	Active     int
	Markets    int
	Readings   int
	Signals    int
	Unreported int
	Evicted    int
	Err        error
}

// Aggregator drives FETCH_SCHEDULE -> FILTER_ACTIVE -> enrich -> MERGE ->
// COMPUTE_SIGNALS -> PUBLISH on a fixed interval. At most one cycle runs at
// a time; ticks that arrive mid-cycle are dropped.
type Aggregator struct {
	cfg  AggregatorConfig
	deps AggregatorDeps
	l    *applogger.Logger
	m    domrepo.Metrics
	now  func() time.Time

	running   atomic.Bool
	lastSweep time.Time
}

func NewAggregator(cfg AggregatorConfig, deps AggregatorDeps) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = def.HookTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.ProbabilityTTL <= 0 {
		cfg.ProbabilityTTL = def.ProbabilityTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	a := &Aggregator{cfg: cfg, deps: deps, l: deps.Logger, m: deps.Metrics, now: deps.Now}
	if a.l == nil {
		a.l = applogger.NewNop()
	}
	if a.m == nil {
		a.m = nopMetrics{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run blocks until ctx is cancelled, then waits for the in-flight cycle.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	a.l.Info("aggregation loop started", applogger.Duration("interval_ms", a.cfg.Interval))
	a.tick(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			a.l.Info("aggregation loop stopping")
			return nil
		case <-ticker.C:
			a.tick(ctx, &wg)
		}
	}
}

// tick starts a cycle unless one is still running.
func (a *Aggregator) tick(ctx context.Context, wg *sync.WaitGroup) bool {
	if !a.running.CompareAndSwap(false, true) {
		a.m.RecordSkippedTick()
		a.l.Debug("cycle still running, tick skipped")
		return false
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer a.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				a.m.RecordError("panic")
				a.l.Error("cycle panicked", applogger.Error(fmt.Errorf("%v", r)))
			}
		}()
		a.RunCycle(ctx)
	}()
	return true
}

type activeEvent struct {
	id    string
	home  models.CanonicalID
	away  models.CanonicalID
	start time.Time
}

// RunCycle executes one full cycle. Failures are contained per event and
// per leg; the report's Err is set only when the schedule itself failed.
func (a *Aggregator) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	now := a.now()
	var rep CycleReport

	defer func() {
		rep.Evicted = a.housekeep(ctx, now)
		size := a.deps.Store.Len()
		a.m.RecordStoreSize(size)
		a.m.RecordCycle(time.Since(start).Seconds(), size)
		a.l.Debug("cycle complete",
			applogger.Int("scheduled", rep.Scheduled),
			applogger.Int("active", rep.Active),
			applogger.Int("markets", rep.Markets),
			applogger.Int("readings", rep.Readings),
			applogger.Int("signals", rep.Signals),
			applogger.Int("unreported", rep.Unreported),
			applogger.Int("evicted", rep.Evicted),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}()

	raws, err := a.fetchSchedule(ctx, now)
	if err != nil {
		rep.Err = err
		a.m.RecordError(models.ErrorKind(err))
		a.l.Warn("schedule fetch failed", applogger.String("kind", models.ErrorKind(err)), applogger.Error(err))
		return rep
	}
	rep.Scheduled = len(raws)

	active, reported := a.applySchedule(raws)
	rep.Active = len(active)
	rep.Unreported = a.clearUnreported(ctx, reported)

	results := a.enrichAll(ctx, active)
	for _, res := range results {
		a.merge(res)
		if res.quote != nil {
			rep.Markets++
		}
		if res.reading != nil {
			rep.Readings++
		}
	}

	rep.Signals = a.computeSignals()
	a.publish(ctx)
	return rep
}

func (a *Aggregator) fetchSchedule(ctx context.Context, now time.Time) ([]models.RawEvent, error) {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	t := time.Now()
	raws, err := a.deps.Schedule.ListEvents(cctx, now)
	a.m.RecordLatency("list_events", time.Since(t).Seconds())
	return raws, err
}

// applySchedule resolves identities, upserts the primary-source fields and
// returns the events that still need enrichment along with every id the
// primary source reported.
func (a *Aggregator) applySchedule(raws []models.RawEvent) ([]activeEvent, map[string]struct{}) {
	active := make([]activeEvent, 0, len(raws))
	reported := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		home, herr := a.deps.Teams.Resolve(models.SourceScoreboard, raw.HomeTeamName)
		away, aerr := a.deps.Teams.Resolve(models.SourceScoreboard, raw.AwayTeamName)
		if herr != nil || aerr != nil || home == away {
			a.l.Debug("event skipped, teams unresolved",
				applogger.String("event_id", raw.ID),
				applogger.String("home", raw.HomeTeamName),
				applogger.String("away", raw.AwayTeamName),
			)
			continue
		}

		state := raw.State
		err := a.deps.Store.Upsert(raw.ID, repository.EventPatch{
			Matchup: &repository.Matchup{HomeTeam: home, AwayTeam: away, StartTime: raw.StartTime},
			Score: &repository.Score{
				Home:        raw.HomeScore,
				Away:        raw.AwayScore,
				Period:      raw.Period,
				PeriodLabel: periodLabel(raw),
				Clock:       raw.Clock,
				StatusText:  raw.StatusText,
			},
			Lifecycle: &state,
		})
		if err != nil {
			a.l.Warn("event upsert failed", applogger.String("event_id", raw.ID), applogger.Error(err))
			continue
		}
		reported[raw.ID] = struct{}{}

		if state == models.StateFinal {
			continue
		}
		active = append(active, activeEvent{id: raw.ID, home: home, away: away, start: raw.StartTime})
	}
	return active, reported
}

// clearUnreported strips enrichment from events the primary source no longer
// returns, so no signal is computed from legs that can no longer be refreshed.
func (a *Aggregator) clearUnreported(ctx context.Context, reported map[string]struct{}) int {
	cleared := a.deps.Store.ClearUnreported(reported)
	for _, id := range cleared {
		if a.deps.Cache != nil {
			_ = a.deps.Cache.Delete(ctx, probabilityKey(id))
		}
		a.l.Debug("event no longer reported, enrichment cleared", applogger.String("event_id", id))
	}
	return len(cleared)
}

// enrichAll takes one market snapshot for the whole cycle and fans the
// per-event calls out. Branches never fail; outcomes travel in the results.
func (a *Aggregator) enrichAll(ctx context.Context, active []activeEvent) []enrichment {
	if len(active) == 0 {
		return nil
	}

	snap, snapErr := a.snapshot(ctx)
	if snapErr != nil {
		a.m.RecordError(models.ErrorKind(snapErr))
		a.l.Warn("market snapshot unavailable", applogger.String("kind", models.ErrorKind(snapErr)), applogger.Error(snapErr))
	}

	results := make([]enrichment, len(active))
	var g errgroup.Group
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, ev := range active {
		g.Go(func() error {
			results[i] = a.enrich(ctx, ev, snap, snapErr)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) snapshot(ctx context.Context) (*MarketSnapshot, error) {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	return a.deps.Reconciler.Snapshot(cctx)
}

// computeSignals runs the engine over every stored event and attaches the result.
func (a *Aggregator) computeSignals() int {
	total := 0
	for _, ev := range a.deps.Store.List(domrepo.EventFilter{}) {
		sigs := a.deps.Engine.Compute(ev)
		if err := a.deps.Store.SetSignals(ev.EventID, sigs); err != nil {
			continue
		}
		for _, s := range sigs {
			a.m.RecordSignal(string(s.Side), string(s.Direction))
			a.l.Info("signal",
				applogger.String("event_id", s.EventID),
				applogger.String("side", string(s.Side)),
				applogger.String("direction", string(s.Direction)),
				applogger.Float64("edge", s.Edge),
				applogger.Float64("confidence", s.Confidence),
			)
		}
		total += len(sigs)
	}
	return total
}

// publish hands the full snapshot to every hook. A failing hook is logged
// and never affects the others.
func (a *Aggregator) publish(ctx context.Context) {
	if len(a.deps.Hooks) == 0 {
		return
	}
	snapshot := a.deps.Store.List(domrepo.EventFilter{})
	for _, h := range a.deps.Hooks {
		hctx, cancel := context.WithTimeout(ctx, a.cfg.HookTimeout)
		t := time.Now()
		err := h.OnSnapshot(hctx, snapshot)
		cancel()
		a.m.RecordLatency("hook_"+h.Name(), time.Since(t).Seconds())
		if err != nil {
			a.m.RecordError("hook")
			a.l.Warn("snapshot hook failed", applogger.String("hook", h.Name()), applogger.Error(err))
		}
	}
}

func (a *Aggregator) housekeep(ctx context.Context, now time.Time) int {
	evicted := a.deps.Store.Evict(now)
	for _, id := range evicted {
		if a.deps.Cache != nil {
			_ = a.deps.Cache.Delete(ctx, probabilityKey(id))
		}
		a.l.Debug("event evicted", applogger.String("event_id", id))
	}

	if sw, ok := a.deps.Cache.(cache.Sweeper); ok && now.Sub(a.lastSweep) >= a.cfg.SweepInterval {
		if n := sw.Sweep(now); n > 0 {
			a.l.Debug("cache swept", applogger.Int("expired", n))
		}
		a.lastSweep = now
	}
	return len(evicted)
}

func periodLabel(raw models.RawEvent) string {
	switch raw.State {
	case models.StateFinal:
		return "FINAL"
	case models.StateScheduled:
		return ""
	}
	if strings.EqualFold(raw.StatusText, "halftime") {
		return "HALF"
	}
	return signals.PeriodLabel(raw.Period)
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle(float64, int) {}
func (nopMetrics) RecordSkippedTick() {}
func (nopMetrics) RecordEnrichment(string, string) {}
func (nopMetrics) RecordSignal(string, string) {}
func (nopMetrics) RecordStoreSize(int) {}
func (nopMetrics) RecordCacheResult(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}
