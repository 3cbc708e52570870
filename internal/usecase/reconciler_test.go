package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CourtArb/internal/domain/models"
	"CourtArb/internal/services/identity"
	"CourtArb/pkg/cache"

	. "github.com/smartystreets/goconvey/convey"
)

var tipOff = time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC)

type fakeMarkets struct {
	mu     sync.Mutex
	events []models.RawMarketEvent
	err    error
	calls  int32
	delay  time.Duration
}

func (f *fakeMarkets) ListOpenMarkets(ctx context.Context, _ string) ([]models.RawMarketEvent, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RawMarketEvent(nil), f.events...), f.err
}

func winner(id string, outcomes []string, prices []float64, liquidity float64) models.RawMarket {
	return models.RawMarket{ID: id, Question: "Pistons vs. Celtics", Outcomes: outcomes, Prices: prices, Liquidity: liquidity}
}

func marketEvent(id, title string, start, end time.Time, markets ...models.RawMarket) models.RawMarketEvent {
	return models.RawMarketEvent{
		ID: id, Title: title, Slug: "nba-" + id,
		StartDate: start, EndDate: end,
		Active: true, Markets: markets,
	}
}

func TestMarketSnapshot_Reconcile(t *testing.T) {
	teams := identity.NewNBAResolver()

	Convey("Given a snapshot with a Pistons at Celtics market", t, func() {
		base := marketEvent("e1", "Pistons vs. Celtics", tipOff.Add(-72*time.Hour), tipOff.Add(3*time.Hour),
			winner("m1", []string{"Pistons", "Celtics"}, []float64{0.45, 0.55}, 12000),
		)

		Convey("When the outcome order differs from home/away", func() {
			q, err := NewMarketSnapshot([]models.RawMarketEvent{base}, teams, nil).Reconcile("BOS", "DET", tipOff)

			Convey("Then prices are assigned by label, not position", func() {
				So(err, ShouldBeNil)
				So(q.MarketID, ShouldEqual, "m1")
				So(q.HomeTeam, ShouldEqual, models.CanonicalID("BOS"))
				So(q.HomePrice, ShouldEqual, 0.55)
				So(q.AwayPrice, ShouldEqual, 0.45)
				So(q.Liquidity, ShouldEqual, 12000)
				So(q.PriceFlagged, ShouldBeFalse)
				So(q.MarketCloseTime, ShouldEqual, tipOff.Add(3*time.Hour))
			})
		})

		Convey("When only one team is named, or the names are reversed", func() {
			other := marketEvent("e2", "Pistons vs. Knicks", tipOff, tipOff.Add(time.Hour),
				winner("m2", []string{"Pistons", "Knicks"}, []float64{0.5, 0.5}, 1))
			snap := NewMarketSnapshot([]models.RawMarketEvent{other}, teams, nil)

			_, err := snap.Reconcile("BOS", "DET", tipOff)
			So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)

			q, err := NewMarketSnapshot([]models.RawMarketEvent{base}, teams, nil).Reconcile("DET", "BOS", tipOff)
			So(err, ShouldBeNil)
			So(q.HomePrice, ShouldEqual, 0.45)
		})

		Convey("When a stale market for the same pairing closed yesterday and the game is tomorrow", func() {
			stale := marketEvent("old", "Pistons vs. Celtics", tipOff.Add(-96*time.Hour), tipOff.Add(-24*time.Hour),
				winner("m-old", []string{"Pistons", "Celtics"}, []float64{0.01, 0.99}, 50000))
			tomorrow := tipOff.Add(24 * time.Hour)

			_, err := NewMarketSnapshot([]models.RawMarketEvent{stale}, teams, nil).Reconcile("BOS", "DET", tomorrow)

			Convey("Then reconciliation is NotFound", func() {
				So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the stale market is already closed upstream", func() {
			closed := marketEvent("closed", "Celtics vs. Pistons", tipOff.Add(-96*time.Hour), tipOff.Add(-24*time.Hour),
				winner("m-closed", []string{"Pistons", "Celtics"}, []float64{0, 1}, 1))
			closed.Closed = true
			snap := NewMarketSnapshot([]models.RawMarketEvent{closed}, teams, nil)

			So(snap.Len(), ShouldEqual, 0)
			_, err := snap.Reconcile("BOS", "DET", tipOff.Add(24*time.Hour))
			So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the close time equals the start time", func() {
			exact := marketEvent("e3", "Pistons vs. Celtics", tipOff.Add(-time.Hour), tipOff,
				winner("m3", []string{"Pistons", "Celtics"}, []float64{0.4, 0.6}, 1))
			q, err := NewMarketSnapshot([]models.RawMarketEvent{exact}, teams, nil).Reconcile("BOS", "DET", tipOff)
			So(err, ShouldBeNil)
			So(q.MarketID, ShouldEqual, "m3")
		})

		Convey("When several market-events name both teams", func() {
			rematch := marketEvent("e9", "Celtics vs. Pistons", tipOff.Add(21*24*time.Hour), tipOff.Add(21*24*time.Hour+3*time.Hour),
				winner("m9", []string{"Celtics", "Pistons"}, []float64{0.6, 0.4}, 1))
			stale := marketEvent("e0", "Celtics vs. Pistons", tipOff.Add(-9*24*time.Hour), tipOff.Add(-7*24*time.Hour),
				winner("m0", []string{"Celtics", "Pistons"}, []float64{0.98, 0.02}, 1))
			q, err := NewMarketSnapshot([]models.RawMarketEvent{rematch, stale, base}, teams, nil).Reconcile("BOS", "DET", tipOff)

			Convey("Then tonight's game wins over the rematch and the closed one", func() {
				So(err, ShouldBeNil)
				So(q.MarketID, ShouldEqual, "m1")
			})

			Convey("Then equal close times fall back to the later start", func() {
				relisted := marketEvent("e8", "Celtics vs. Pistons", tipOff.Add(-time.Hour), tipOff.Add(3*time.Hour),
					winner("m8", []string{"Celtics", "Pistons"}, []float64{0.6, 0.4}, 1))
				q, err := NewMarketSnapshot([]models.RawMarketEvent{base, relisted}, teams, nil).Reconcile("BOS", "DET", tipOff)
				So(err, ShouldBeNil)
				So(q.MarketID, ShouldEqual, "m8")
			})
		})

		Convey("When the reference time is unknown", func() {
			stale := marketEvent("e0", "Pistons vs. Celtics", tipOff.Add(-9*24*time.Hour), tipOff.Add(-7*24*time.Hour),
				winner("m0", []string{"Pistons", "Celtics"}, []float64{0.02, 0.98}, 1))
			_, err := NewMarketSnapshot([]models.RawMarketEvent{stale, base}, teams, nil).Reconcile("BOS", "DET", time.Time{})

			Convey("Then nothing is matched", func() {
				So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the event also lists derivative markets", func() {
			spread := models.RawMarket{ID: "s1", Question: "Spread: Celtics (-6.5)", Outcomes: []string{"Celtics", "Pistons"}, Prices: []float64{0.5, 0.5}, Liquidity: 99999}
			total := models.RawMarket{ID: "t1", Question: "Celtics vs. Pistons: O/U 221.5", Outcomes: []string{"Over", "Under"}, Prices: []float64{0.5, 0.5}, Liquidity: 99999}
			half := models.RawMarket{ID: "h1", Question: "Celtics vs. Pistons 1st Half Winner", Outcomes: []string{"Celtics", "Pistons"}, Prices: []float64{0.6, 0.4}, Liquidity: 99999}
			three := models.RawMarket{ID: "x1", Question: "Who wins?", Outcomes: []string{"Celtics", "Pistons", "Draw"}, Prices: []float64{0.5, 0.4, 0.1}, Liquidity: 99999}
			ev := base
			ev.Markets = []models.RawMarket{spread, total, half, three, base.Markets[0]}

			q, err := NewMarketSnapshot([]models.RawMarketEvent{ev}, teams, nil).Reconcile("BOS", "DET", tipOff)

			Convey("Then the two-outcome winner market is chosen", func() {
				So(err, ShouldBeNil)
				So(q.MarketID, ShouldEqual, "m1")
			})
		})

		Convey("When outcomes cannot be assigned to teams", func() {
			ev := base
			ev.Markets = []models.RawMarket{winner("yn", []string{"Yes", "No"}, []float64{0.5, 0.5}, 1)}
			_, err := NewMarketSnapshot([]models.RawMarketEvent{ev}, teams, nil).Reconcile("BOS", "DET", tipOff)
			So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)
		})

		Convey("When prices do not sum to one", func() {
			ev := base
			ev.Markets = []models.RawMarket{winner("m1", []string{"Pistons", "Celtics"}, []float64{0.40, 0.50}, 1)}
			q, err := NewMarketSnapshot([]models.RawMarketEvent{ev}, teams, nil).Reconcile("BOS", "DET", tipOff)

			Convey("Then the quote is used but flagged", func() {
				So(err, ShouldBeNil)
				So(q.PriceFlagged, ShouldBeTrue)
			})
		})

		Convey("Then reconciling twice yields the same answer", func() {
			snap := NewMarketSnapshot([]models.RawMarketEvent{base}, teams, nil)
			a, errA := snap.Reconcile("BOS", "DET", tipOff)
			b, errB := snap.Reconcile("BOS", "DET", tipOff)
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(b, ShouldResemble, a)

			_, errC := snap.Reconcile("BOS", "NYK", tipOff)
			_, errD := snap.Reconcile("BOS", "NYK", tipOff)
			So(errC.Error(), ShouldEqual, errD.Error())
		})
	})
}

func TestMarketSnapshot_NeverReturnsClosedBeforeStart(t *testing.T) {
	teams := identity.NewNBAResolver()
	for offset := -48; offset <= 48; offset += 6 {
		closeAt := tipOff.Add(time.Duration(offset) * time.Hour)
		ev := marketEvent("e", "Pistons vs. Celtics", tipOff.Add(-100*time.Hour), closeAt,
			winner("m", []string{"Pistons", "Celtics"}, []float64{0.5, 0.5}, 1))
		q, err := NewMarketSnapshot([]models.RawMarketEvent{ev}, teams, nil).Reconcile("BOS", "DET", tipOff)
		if err == nil && q.MarketCloseTime.Before(tipOff) {
			t.Fatalf("offset %dh: returned a market closing before the start", offset)
		}
		if offset >= 0 && err != nil {
			t.Fatalf("offset %dh: expected a match, got %v", offset, err)
		}
	}
}

func TestReconciler_Snapshot(t *testing.T) {
	Convey("Given a reconciler backed by a memory cache", t, func() {
		ctx := context.Background()
		src := &fakeMarkets{events: []models.RawMarketEvent{
			marketEvent("e1", "Pistons vs. Celtics", tipOff.Add(-time.Hour), tipOff.Add(time.Hour),
				winner("m1", []string{"Pistons", "Celtics"}, []float64{0.45, 0.55}, 1)),
		}}
		clock := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
		now := func() time.Time { return clock }
		mc := cache.NewMemoryCache(cache.WithMemoryClock(now))
		rec := NewReconciler(src, mc, identity.NewNBAResolver())

		Convey("When reconciling repeatedly within the ttl", func() {
			for i := 0; i < 3; i++ {
				q, err := rec.Reconcile(ctx, "BOS", "DET", tipOff)
				So(err, ShouldBeNil)
				So(q.HomePrice, ShouldEqual, 0.55)
			}

			Convey("Then the upstream is called once", func() {
				So(atomic.LoadInt32(&src.calls), ShouldEqual, 1)
			})

			Convey("Then the cache expires after 45s", func() {
				clock = clock.Add(DefaultSnapshotTTL)
				_, err := rec.Reconcile(ctx, "BOS", "DET", tipOff)
				So(err, ShouldBeNil)
				So(atomic.LoadInt32(&src.calls), ShouldEqual, 2)
			})
		})

		Convey("When many callers miss at once", func() {
			src.delay = 50 * time.Millisecond
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = rec.Snapshot(ctx)
				}()
			}
			wg.Wait()

			Convey("Then they share one upstream call", func() {
				So(atomic.LoadInt32(&src.calls), ShouldBeLessThanOrEqualTo, 2)
			})
		})

		Convey("When the upstream fails", func() {
			src.err = models.ErrUpstreamUnavailable
			_, err := rec.Snapshot(ctx)
			So(errors.Is(err, models.ErrUpstreamUnavailable), ShouldBeTrue)
		})
	})
}
