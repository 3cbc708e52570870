package signals

import (
	"fmt"
	"math"

	"CourtArb/internal/domain/models"

	"github.com/google/uuid"
)

// epsilon absorbs float noise at threshold boundaries (0.65-0.45 is 0.20000000000000007).
const epsilon = 1e-9

// Confidence adjustments.
const (
	edgeScale          = 10.0
	baseCap            = 0.5
	highLiquidityBonus = 0.2
	midLiquidityBonus  = 0.1
	closeGameBonus     = 0.1
	blowoutPenalty     = 0.1
	timeValueBonus     = 0.2
)

var signalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("courtarb/signals"))

// Thresholds holds the tunable limits of the four strategies.
type Thresholds struct {
	BuyMinEdge        float64
	BuyMinConfidence  float64
	SellMinEdge       float64
	SellMinLead       int
	SellMinPrice      float64
	SellScale         float64
	SellMinConfidence float64
	HighLiquidity     float64
	MidLiquidity      float64
	CloseGameMargin   int
	BlowoutMargin     int
	TimeBonusSeconds  int
	LateGameSeconds   int
	LateGameScale     float64
}

// DefaultThresholds returns the production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BuyMinEdge:        0.05,
		BuyMinConfidence:  0.5,
		SellMinEdge:       0.07,
		SellMinLead:       5,
		SellMinPrice:      0.70,
		SellScale:         0.9,
		SellMinConfidence: 0.6,
		HighLiquidity:     10000,
		MidLiquidity:      5000,
		CloseGameMargin:   5,
		BlowoutMargin:     15,
		TimeBonusSeconds:  1800,
		LateGameSeconds:   600,
		LateGameScale:     0.8,
	}
}

// Option configures Engine.
type Option func(*Engine)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		e.th = t
	}
}

// Engine implements service.SignalEngine. It is stateless and pure: the same
// event always yields the same signals, ids included.
type Engine struct {
	th Thresholds
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{th: DefaultThresholds()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute evaluates buy and sell for both sides.
func (e *Engine) Compute(ev models.UnifiedEvent) []models.Signal {
	if ev.LifecycleState == models.StateFinal {
		return nil
	}
	if !ev.DataCompleteness.HasMarket || !ev.DataCompleteness.HasProbability {
		return nil
	}
	if ev.Market == nil || ev.Probability == nil {
		return nil
	}

	remaining, clockKnown := EstimateRemaining(ev.LifecycleState, ev.PeriodLabel, ev.Clock)

	var out []models.Signal
	for _, side := range []models.Side{models.SideHome, models.SideAway} {
		prob, ok := ev.Probability.ForSide(side, ev.LifecycleState)
		if !ok {
			continue
		}
		price := ev.Market.PriceFor(side)

		if s, ok := e.buy(ev, side, prob, price, remaining, clockKnown); ok {
			out = append(out, s)
		}
		if s, ok := e.sell(ev, side, prob, price, remaining, clockKnown); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) buy(ev models.UnifiedEvent, side models.Side, prob, price float64, remaining int, clockKnown bool) (models.Signal, bool) {
	edge := prob - price
	if !(edge >= e.th.BuyMinEdge-epsilon) {
		return models.Signal{}, false
	}

	conf := e.confidence(ev, edge, remaining, clockKnown)
	if conf < e.th.BuyMinConfidence-epsilon {
		return models.Signal{}, false
	}

	reason := fmt.Sprintf("%s %s: win probability %.1f%% vs market %.1f%% (edge %+.1f pts, liquidity %.0f)",
		models.DirectionBuy, ev.TeamFor(side), prob*100, price*100, edge*100, ev.Market.Liquidity)
	return newSignal(ev, side, models.DirectionBuy, conf, edge, reason), true
}

func (e *Engine) sell(ev models.UnifiedEvent, side models.Side, prob, price float64, remaining int, clockKnown bool) (models.Signal, bool) {
	edge := price - prob
	if !(edge >= e.th.SellMinEdge-epsilon) {
		return models.Signal{}, false
	}
	lead := ev.LeadFor(side)
	if lead < e.th.SellMinLead {
		return models.Signal{}, false
	}
	if price < e.th.SellMinPrice-epsilon {
		return models.Signal{}, false
	}

	conf := e.confidence(ev, edge, remaining, clockKnown) * e.th.SellScale
	if conf < e.th.SellMinConfidence-epsilon {
		return models.Signal{}, false
	}

	reason := fmt.Sprintf("%s %s: market %.1f%% overprices win probability %.1f%% (edge %+.1f pts) while leading by %d",
		models.DirectionSell, ev.TeamFor(side), price*100, prob*100, edge*100, lead)
	return newSignal(ev, side, models.DirectionSell, conf, edge, reason), true
}

// confidence is shared by both directions; the result is always within [0,1].
func (e *Engine) confidence(ev models.UnifiedEvent, edge float64, remaining int, clockKnown bool) float64 {
	c := math.Min(edge*edgeScale, baseCap)

	switch liq := ev.Market.Liquidity; {
	case liq > e.th.HighLiquidity:
		c += highLiquidityBonus
	case liq > e.th.MidLiquidity:
		c += midLiquidityBonus
	}

	diff := ev.ScoreDiff()
	if diff < 0 {
		diff = -diff
	}
	if diff < e.th.CloseGameMargin {
		c += closeGameBonus
	} else if diff > e.th.BlowoutMargin {
		c -= blowoutPenalty
	}

	if clockKnown && remaining > e.th.TimeBonusSeconds {
		c += timeValueBonus
	}

	c = clamp(c, 0, 1)

	if ev.LifecycleState == models.StateLive && clockKnown && remaining < e.th.LateGameSeconds {
		c *= e.th.LateGameScale
	}
	return clamp(c, 0, 1)
}

func newSignal(ev models.UnifiedEvent, side models.Side, dir models.Direction, conf, edge float64, reason string) models.Signal {
	key := fmt.Sprintf("%s|%s|%s|%d", ev.EventID, side, dir, ev.LastUpdate.UnixNano())
	return models.Signal{
		ID:         uuid.NewSHA1(signalNamespace, []byte(key)).String(),
		EventID:    ev.EventID,
		Side:       side,
		Direction:  dir,
		Confidence: conf,
		Edge:       edge,
		Reason:     reason,
		ComputedAt: ev.LastUpdate,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
