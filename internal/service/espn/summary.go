package espn

import (
	"context"
	"net/url"
	"strings"

	"CourtArb/internal/domain/models"
	drepo "CourtArb/internal/domain/repository"
	"CourtArb/internal/service/upstream"

	"github.com/shopspring/decimal"
)

var (
	_ drepo.ProbabilitySource = (*Client)(nil)

	hundred = decimal.NewFromInt(100)
)

// GetProbability reads pregame projections, the latest live home win
// fraction and injury notes for one game. Team names are the summary's
// nicknames; orienting them against the event is the caller's job.
func (c *Client) GetProbability(ctx context.Context, eventRef string) (*models.RawProbability, error) {
	const op = "espn summary"
	if strings.TrimSpace(eventRef) == "" {
		return nil, upstream.Shape(op, "empty event ref")
	}

	var resp summaryResponse
	if err := c.get(ctx, op, "/summary", url.Values{"event": {eventRef}}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Header.Competitions) == 0 {
		return nil, upstream.Shape(op, "event %s has no competitions", eventRef)
	}
	home, away, ok := sides(resp.Header.Competitions[0].Competitors)
	if !ok {
		return nil, upstream.Shape(op, "event %s has no home/away competitors", eventRef)
	}

	out := &models.RawProbability{
		EventRef:     eventRef,
		HomeTeamName: nickname(home.Team),
		AwayTeamName: nickname(away.Team),
	}

	if p := resp.Predictor; p != nil {
		h, hok := percent(p.HomeTeam.GameProjection)
		a, aok := percent(p.AwayTeam.GameProjection)
		switch {
		case hok && aok:
			out.PregameHome, out.PregameAway, out.PregameAvailable = h, a, true
		case hok:
			out.PregameHome, out.PregameAway, out.PregameAvailable = h, 1-h, true
		case aok:
			out.PregameHome, out.PregameAway, out.PregameAvailable = 1-a, a, true
		}
	}

	if n := len(resp.WinProbability); n > 0 {
		last := resp.WinProbability[n-1].HomeWinPercentage
		if last == nil || *last < 0 || *last > 1 {
			return nil, upstream.Shape(op, "event %s: invalid live home win fraction", eventRef)
		}
		out.LiveHome, out.LiveAvailable = *last, true
	}

	for _, block := range resp.Injuries {
		team := firstNonEmpty(block.Team.Name, block.Team.DisplayName)
		for _, inj := range block.Injuries {
			if inj.Athlete.DisplayName == "" {
				continue
			}
			note := models.RawInjury{
				TeamName: team,
				Player:   inj.Athlete.DisplayName,
				Status:   inj.Status,
			}
			if inj.Details != nil {
				note.Detail = strings.TrimSpace(inj.Details.Type + " " + inj.Details.Detail)
			}
			out.Injuries = append(out.Injuries, note)
		}
	}
	return out, nil
}

func nickname(t sbTeam) string {
	return firstNonEmpty(t.Name, t.ShortDisplayName, t.DisplayName)
}

// percent parses "65.3" into 0.653. Values outside [0,100] are rejected.
func percent(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.GreaterThan(hundred) {
		return 0, false
	}
	return d.Div(hundred).InexactFloat64(), true
}
