package signals_test

import (
	"testing"
	"time"

	"CourtArb/internal/domain/models"
	"CourtArb/internal/services/signals"

	. "github.com/smartystreets/goconvey/convey"
)

var computedAt = time.Date(2025, 1, 15, 0, 30, 0, 0, time.UTC)

func baseEvent(state models.LifecycleState) models.UnifiedEvent {
	return models.UnifiedEvent{
		EventID:        "401704001",
		HomeTeam:       "BOS",
		AwayTeam:       "DET",
		LifecycleState: state,
		LastUpdate:     computedAt,
		DataCompleteness: models.DataCompleteness{
			HasMarket:      true,
			HasProbability: true,
			HasScore:       state != models.StateScheduled,
		},
	}
}

func withMarket(ev models.UnifiedEvent, home, away, liquidity float64) models.UnifiedEvent {
	ev.Market = &models.MarketQuote{
		MarketID:  "m-1",
		HomeTeam:  ev.HomeTeam,
		AwayTeam:  ev.AwayTeam,
		HomePrice: home,
		AwayPrice: away,
		Liquidity: liquidity,
	}
	return ev
}

func withPregame(ev models.UnifiedEvent, home float64) models.UnifiedEvent {
	ev.Probability = &models.ProbabilityReading{
		PregameHomeWinProb: home,
		PregameAwayWinProb: 1 - home,
		PregameAvailable:   true,
	}
	return ev
}

func withLive(ev models.UnifiedEvent, home float64) models.UnifiedEvent {
	ev.Probability = &models.ProbabilityReading{
		HomeWinProb:        home,
		AwayWinProb:        1 - home,
		LiveAvailable:      true,
		PregameHomeWinProb: 0.5,
		PregameAwayWinProb: 0.5,
		PregameAvailable:   true,
	}
	return ev
}

func withScore(ev models.UnifiedEvent, home, away int, label, clock string) models.UnifiedEvent {
	ev.HomeScore, ev.AwayScore = home, away
	ev.PeriodLabel, ev.Clock = label, clock
	return ev
}

func filter(sigs []models.Signal, side models.Side, dir models.Direction) []models.Signal {
	var out []models.Signal
	for _, s := range sigs {
		if s.Side == side && s.Direction == dir {
			out = append(out, s)
		}
	}
	return out
}

func countDirection(sigs []models.Signal, dir models.Direction) int {
	n := 0
	for _, s := range sigs {
		if s.Direction == dir {
			n++
		}
	}
	return n
}

func TestEngine_Scenarios(t *testing.T) {
	Convey("Given the signal engine with default thresholds", t, func() {
		engine := signals.NewEngine()

		Convey("When a scheduled favourite is underpriced by 20 points in a liquid market", func() {
			ev := withPregame(withMarket(baseEvent(models.StateScheduled), 0.45, 0.55, 12000), 0.65)
			sigs := engine.Compute(ev)

			Convey("Then exactly one high-confidence BUY HOME is emitted", func() {
				So(len(sigs), ShouldEqual, 1)
				So(sigs[0].Side, ShouldEqual, models.SideHome)
				So(sigs[0].Direction, ShouldEqual, models.DirectionBuy)
				So(sigs[0].Edge, ShouldAlmostEqual, 0.20, 1e-9)
				So(sigs[0].Confidence, ShouldBeGreaterThanOrEqualTo, 0.9)
				So(sigs[0].EventID, ShouldEqual, "401704001")
				So(sigs[0].ComputedAt, ShouldEqual, computedAt)
			})
		})

		Convey("When a live home team leads by 8 and the market overshoots", func() {
			ev := withScore(baseEvent(models.StateLive), 58, 50, "Q3", "6:00")
			ev = withLive(withMarket(ev, 0.80, 0.20, 12000), 0.70)
			sigs := engine.Compute(ev)

			Convey("Then exactly one SELL HOME is emitted", func() {
				sells := filter(sigs, models.SideHome, models.DirectionSell)
				So(len(sells), ShouldEqual, 1)
				So(countDirection(sigs, models.DirectionSell), ShouldEqual, 1)
				So(sells[0].Edge, ShouldAlmostEqual, 0.10, 1e-9)
				So(sells[0].Confidence, ShouldAlmostEqual, 0.63, 1e-9)
			})
		})

		Convey("When the same game is only a two point lead", func() {
			ev := withScore(baseEvent(models.StateLive), 52, 50, "Q3", "6:00")
			ev = withLive(withMarket(ev, 0.80, 0.20, 12000), 0.70)
			sigs := engine.Compute(ev)

			Convey("Then no sell signal is emitted", func() {
				So(countDirection(sigs, models.DirectionSell), ShouldEqual, 0)
			})
		})

		Convey("When the sell favourite is priced below 0.70", func() {
			ev := withScore(baseEvent(models.StateLive), 60, 50, "Q3", "6:00")
			ev = withLive(withMarket(ev, 0.69, 0.31, 12000), 0.55)
			So(len(filter(engine.Compute(ev), models.SideHome, models.DirectionSell)), ShouldEqual, 0)
		})

		Convey("When fewer than ten minutes remain", func() {
			ev := withScore(baseEvent(models.StateLive), 90, 87, "Q4", "5:00")
			ev = withLive(withMarket(ev, 0.50, 0.50, 12000), 0.60)
			buys := filter(engine.Compute(ev), models.SideHome, models.DirectionBuy)

			Convey("Then the confidence is scaled down", func() {
				So(len(buys), ShouldEqual, 1)
				// 0.5 base + 0.2 liquidity + 0.1 close game, then x0.8
				So(buys[0].Confidence, ShouldAlmostEqual, 0.64, 1e-9)
			})
		})

		Convey("When the edge is too small or confidence too low", func() {
			thin := withPregame(withMarket(baseEvent(models.StateScheduled), 0.62, 0.38, 12000), 0.65)
			So(engine.Compute(thin), ShouldBeEmpty)

			illiquid := withScore(baseEvent(models.StateLive), 70, 50, "Q4", "2:00")
			illiquid = withLive(withMarket(illiquid, 0.55, 0.45, 100), 0.60)
			So(engine.Compute(illiquid), ShouldBeEmpty)
		})
	})
}

func TestEngine_Preconditions(t *testing.T) {
	Convey("Given an event that would otherwise produce a signal", t, func() {
		engine := signals.NewEngine()
		ev := withPregame(withMarket(baseEvent(models.StateScheduled), 0.45, 0.55, 12000), 0.65)
		So(engine.Compute(ev), ShouldNotBeEmpty)

		Convey("Then a final event yields nothing", func() {
			ev.LifecycleState = models.StateFinal
			So(engine.Compute(ev), ShouldBeEmpty)
		})

		Convey("Then a missing market leg yields nothing", func() {
			ev.DataCompleteness.HasMarket = false
			So(engine.Compute(ev), ShouldBeEmpty)
		})

		Convey("Then a missing probability leg yields nothing", func() {
			ev.DataCompleteness.HasProbability = false
			So(engine.Compute(ev), ShouldBeEmpty)
		})

		Convey("Then a scheduled event without pregame projections yields nothing", func() {
			ev.Probability.PregameAvailable = false
			ev.Probability.LiveAvailable = true
			ev.Probability.HomeWinProb = 0.9
			So(engine.Compute(ev), ShouldBeEmpty)
		})

		Convey("Then a live event reads the live probability, not the pregame one", func() {
			ev.LifecycleState = models.StateLive
			ev.PeriodLabel, ev.Clock = "Q1", "10:00"
			ev.Probability.LiveAvailable = true
			ev.Probability.HomeWinProb = 0.46
			ev.Probability.AwayWinProb = 0.54
			So(engine.Compute(ev), ShouldBeEmpty)
		})
	})
}

func TestEngine_Deterministic(t *testing.T) {
	Convey("Given the same event computed twice", t, func() {
		engine := signals.NewEngine()
		ev := withScore(baseEvent(models.StateLive), 58, 50, "Q3", "6:00")
		ev = withLive(withMarket(ev, 0.80, 0.20, 12000), 0.70)

		first := engine.Compute(ev)
		second := engine.Compute(ev)

		So(second, ShouldResemble, first)
		So(first[0].ID, ShouldNotBeEmpty)

		Convey("Then a newer update produces new ids", func() {
			ev.LastUpdate = ev.LastUpdate.Add(5 * time.Second)
			third := engine.Compute(ev)
			So(third[0].ID, ShouldNotEqual, first[0].ID)
		})
	})
}

func TestEngine_ConfidenceBounds(t *testing.T) {
	engine := signals.NewEngine()
	prices := []float64{0, 0.01, 0.3, 0.5, 0.7, 0.95, 1}
	probs := []float64{0, 0.05, 0.4, 0.6, 0.99, 1}
	liquidity := []float64{0, 5001, 10001, 1e12}
	scores := [][2]int{{0, 0}, {40, 39}, {120, 80}, {80, 120}}
	clocks := [][2]string{{"Q1", "12:00"}, {"Q4", "0:30"}, {"OT2", "4:00"}, {"HALF", ""}, {"??", "x"}}

	for _, state := range []models.LifecycleState{models.StateScheduled, models.StateLive} {
		for _, price := range prices {
			for _, prob := range probs {
				for _, liq := range liquidity {
					for _, sc := range scores {
						for _, cl := range clocks {
							ev := withScore(baseEvent(state), sc[0], sc[1], cl[0], cl[1])
							ev = withMarket(ev, price, 1-price, liq)
							if state == models.StateLive {
								ev = withLive(ev, prob)
							} else {
								ev = withPregame(ev, prob)
							}
							for _, s := range engine.Compute(ev) {
								if s.Confidence < 0 || s.Confidence > 1 {
									t.Fatalf("confidence %v out of range for %+v", s.Confidence, ev)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestEngine_CustomThresholds(t *testing.T) {
	th := signals.DefaultThresholds()
	th.BuyMinEdge = 0.25
	engine := signals.NewEngine(signals.WithThresholds(th))

	ev := withPregame(withMarket(baseEvent(models.StateScheduled), 0.45, 0.55, 12000), 0.65)
	if got := engine.Compute(ev); len(got) != 0 {
		t.Fatalf("expected no signals with raised buy edge, got %d", len(got))
	}
}
