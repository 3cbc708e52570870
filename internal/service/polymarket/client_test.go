package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"CourtArb/internal/domain/models"

	. "github.com/smartystreets/goconvey/convey"
)

const eventsFixture = `[
  {
    "id": "9001",
    "slug": "nba-det-bos-2025-01-15",
    "title": "Pistons vs. Celtics",
    "startDate": "2025-01-10T12:00:00Z",
    "endDate": "2025-01-16T03:00:00Z",
    "active": true, "closed": false, "archived": false,
    "liquidity": "15234.5", "volume": 88000,
    "markets": [
      {"id": "m1", "question": "Pistons vs. Celtics", "outcomes": "[\"Pistons\", \"Celtics\"]",
       "outcomePrices": "[\"0.45\", \"0.55\"]", "liquidity": "12000", "endDate": "2025-01-16T03:00:00Z"},
      {"id": "m2", "question": "Spread: Celtics (-6.5)", "outcomes": "not json",
       "outcomePrices": "[\"0.5\", \"0.5\"]"},
      {"id": "m3", "question": "Pistons vs. Celtics", "outcomes": "[\"Pistons\", \"Celtics\"]",
       "outcomePrices": "[\"1.45\", \"0.55\"]"}
    ]
  }
]`

func TestListOpenMarkets(t *testing.T) {
	Convey("Given a Gamma events endpoint", t, func() {
		var query map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			query = map[string]string{
				"tag_slug": q.Get("tag_slug"),
				"active":   q.Get("active"),
				"closed":   q.Get("closed"),
			}
			_, _ = w.Write([]byte(eventsFixture))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0, 0))
		events, err := c.ListOpenMarkets(context.Background(), "nba")

		Convey("Then open events come back with decodable markets only", func() {
			So(err, ShouldBeNil)
			So(query, ShouldResemble, map[string]string{"tag_slug": "nba", "active": "true", "closed": "false"})
			So(len(events), ShouldEqual, 1)

			ev := events[0]
			So(ev.Open(), ShouldBeTrue)
			So(ev.Liquidity, ShouldAlmostEqual, 15234.5, 1e-9)
			So(ev.Volume, ShouldAlmostEqual, 88000, 1e-9)
			So(ev.EndDate, ShouldEqual, time.Date(2025, 1, 16, 3, 0, 0, 0, time.UTC))
			So(len(ev.Markets), ShouldEqual, 1)
			So(ev.Markets[0].Outcomes, ShouldResemble, []string{"Pistons", "Celtics"})
			So(ev.Markets[0].Prices, ShouldResemble, []float64{0.45, 0.55})
			So(ev.Markets[0].Liquidity, ShouldEqual, 12000)
		})
	})
}

func TestListOpenMarkets_Paging(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset >= 4 {
			_, _ = w.Write([]byte(`[{"id":"last","active":true}]`))
			return
		}
		_, _ = fmt.Fprintf(w, `[{"id":"e%d","active":true},{"id":"e%d","active":true}]`, offset, offset+1)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0, 0), WithPaging(2, 10))
	events, err := c.ListOpenMarkets(context.Background(), "nba")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 || calls != 3 {
		t.Fatalf("expected 5 events over 3 pages, got %d over %d", len(events), calls)
	}
}

func TestListOpenMarkets_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0, 0))
	if _, err := c.ListOpenMarkets(context.Background(), "nba"); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer bad.Close()

	c = NewClient(WithBaseURL(bad.URL), WithRateLimit(0, 0))
	if _, err := c.ListOpenMarkets(context.Background(), "nba"); !errors.Is(err, models.ErrDataShape) {
		t.Fatalf("expected data shape, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	Convey("Outcome and price arrays are decoded strictly", t, func() {
		out, err := DecodeOutcomes(`["Lakers","Warriors"]`)
		So(err, ShouldBeNil)
		So(out, ShouldResemble, []string{"Lakers", "Warriors"})

		_, err = DecodeOutcomes(`["Lakers",""]`)
		So(errors.Is(err, models.ErrDataShape), ShouldBeTrue)

		prices, err := DecodePrices(`["0.515", "0.485"]`)
		So(err, ShouldBeNil)
		So(prices, ShouldResemble, []float64{0.515, 0.485})

		_, err = DecodePrices(`["abc"]`)
		So(errors.Is(err, models.ErrDataShape), ShouldBeTrue)

		_, err = DecodePrices(`["-0.1"]`)
		So(errors.Is(err, models.ErrDataShape), ShouldBeTrue)
	})
}
