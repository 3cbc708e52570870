package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CourtArb/internal/domain/models"
	"CourtArb/internal/repository"
	"CourtArb/pkg/cache"
	applogger "CourtArb/pkg/logger"
)

const (
	legMarket      = "market"
	legProbability = "probability"
)

// enrichment is the tagged result of one event's parallel branch.
type enrichment struct {
	event      activeEvent
	quote      *models.MarketQuote
	marketErr  error
	reading    *models.ProbabilityReading
	readingErr error
}

func probabilityKey(eventID string) string {
	return cache.GenerateKey("winprob", eventID)
}

func (a *Aggregator) enrich(ctx context.Context, ev activeEvent, snap *MarketSnapshot, snapErr error) enrichment {
	res := enrichment{event: ev}

	if snapErr != nil {
		res.marketErr = snapErr
	} else {
		res.quote, res.marketErr = snap.Reconcile(ev.home, ev.away, ev.start)
	}

	res.reading, res.readingErr = a.probability(ctx, ev)
	return res
}

// probability is cache-first; the cached value is already oriented to the event.
func (a *Aggregator) probability(ctx context.Context, ev activeEvent) (*models.ProbabilityReading, error) {
	key := probabilityKey(ev.id)
	if a.deps.Cache != nil {
		var cached models.ProbabilityReading
		if err := a.deps.Cache.Get(ctx, key, &cached); err == nil {
			a.m.RecordCacheResult(legProbability, "hit")
			return &cached, nil
		}
		a.m.RecordCacheResult(legProbability, "miss")
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	t := time.Now()
	raw, err := a.deps.Probability.GetProbability(cctx, ev.id)
	a.m.RecordLatency("get_probability", time.Since(t).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %w", models.ErrUpstreamTimeout, err)
		}
		return nil, err
	}

	reading, err := a.orient(ev, raw)
	if err != nil {
		return nil, err
	}

	if a.deps.Cache != nil {
		if err := a.deps.Cache.Set(ctx, key, reading, a.cfg.ProbabilityTTL); err != nil {
			a.l.Warn("probability not cached", applogger.String("key", key), applogger.Error(err))
		}
	}
	return reading, nil
}

// orient maps the source's home/away onto the event's. A reading whose teams
// are not the event's teams is a data shape mismatch.
func (a *Aggregator) orient(ev activeEvent, raw *models.RawProbability) (*models.ProbabilityReading, error) {
	if raw == nil {
		return nil, fmt.Errorf("probability %s: empty payload: %w", ev.id, models.ErrDataShape)
	}
	home, herr := a.deps.Teams.Resolve(models.SourceWinProb, raw.HomeTeamName)
	away, aerr := a.deps.Teams.Resolve(models.SourceWinProb, raw.AwayTeamName)
	if herr != nil || aerr != nil {
		return nil, fmt.Errorf("probability %s: teams %q/%q unresolved: %w", ev.id, raw.HomeTeamName, raw.AwayTeamName, models.ErrDataShape)
	}

	reading := models.ProbabilityReading{
		PregameHomeWinProb: raw.PregameHome,
		PregameAwayWinProb: raw.PregameAway,
		PregameAvailable:   raw.PregameAvailable,
		LiveAvailable:      raw.LiveAvailable,
	}
	if raw.LiveAvailable {
		reading.HomeWinProb = raw.LiveHome
		reading.AwayWinProb = 1 - raw.LiveHome
	}
	for _, inj := range raw.Injuries {
		team, err := a.deps.Teams.Resolve(models.SourceWinProb, inj.TeamName)
		if err != nil {
			continue
		}
		reading.Injuries = append(reading.Injuries, models.InjuryNote{
			Team: team, Player: inj.Player, Status: inj.Status, Detail: inj.Detail,
		})
	}

	switch {
	case home == ev.home && away == ev.away:
		return &reading, nil
	case home == ev.away && away == ev.home:
		swapped := reading.Swapped()
		return &swapped, nil
	default:
		return nil, fmt.Errorf("probability %s: reading is for %s-%s, event is %s-%s: %w",
			ev.id, home, away, ev.home, ev.away, models.ErrDataShape)
	}
}

// merge writes both legs. A failed leg is cleared so no stale value survives.
func (a *Aggregator) merge(res enrichment) {
	a.observe(res.event, legMarket, res.marketErr)
	a.observe(res.event, legProbability, res.readingErr)

	patch := repository.EventPatch{
		Market:      &repository.MarketLeg{Quote: res.quote},
		Probability: &repository.ProbabilityLeg{Reading: res.reading},
	}
	if err := a.deps.Store.Upsert(res.event.id, patch); err != nil {
		a.l.Warn("merge failed", applogger.String("event_id", res.event.id), applogger.Error(err))
	}
}

// observe records the leg outcome. NotFound is expected and stays at debug.
func (a *Aggregator) observe(ev activeEvent, leg string, err error) {
	kind := models.ErrorKind(err)
	a.m.RecordEnrichment(leg, kind)
	if err == nil {
		return
	}

	fields := []applogger.Field{
		applogger.String("event_id", ev.id),
		applogger.String("home", string(ev.home)),
		applogger.String("away", string(ev.away)),
		applogger.String("leg", leg),
		applogger.String("kind", kind),
		applogger.Error(err),
	}
	if errors.Is(err, models.ErrNotFound) {
		a.l.Debug("enrichment not found", fields...)
		return
	}
	a.l.Warn("enrichment failed", fields...)
}
