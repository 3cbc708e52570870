package espn

import (
	"context"
	"net/url"
	"strings"
	"time"

	"CourtArb/internal/domain/models"
	drepo "CourtArb/internal/domain/repository"
	"CourtArb/internal/service/upstream"
	"CourtArb/pkg/util"
)

var _ drepo.ScheduleSource = (*Client)(nil)

// lateGameHour is the local hour before which the previous calendar day's
// scoreboard is also read, so games running past midnight stay visible.
const lateGameHour = 3

// ListEvents returns every game on the scoreboard for date's calendar day,
// plus the previous day's games early in the morning. Games whose
// competitors or start time cannot be read are dropped; an unreadable
// payload as a whole is ErrDataShape.
func (c *Client) ListEvents(ctx context.Context, date time.Time) ([]models.RawEvent, error) {
	const op = "espn scoreboard"

	local := date.In(c.loc)
	days := []time.Time{local}
	if local.Hour() < lateGameHour {
		days = []time.Time{local.AddDate(0, 0, -1), local}
	}

	var (
		out   []models.RawEvent
		total int
		seen  = make(map[string]struct{})
	)
	for _, day := range days {
		params := url.Values{"dates": {util.CalendarDay(day, c.loc)}}
		var resp scoreboardResponse
		if err := c.get(ctx, op, "/scoreboard", params, &resp); err != nil {
			return nil, err
		}
		total += len(resp.Events)
		for _, ev := range resp.Events {
			raw, ok := toRawEvent(ev)
			if !ok {
				continue
			}
			if _, dup := seen[raw.ID]; dup {
				continue
			}
			seen[raw.ID] = struct{}{}
			out = append(out, raw)
		}
	}
	if total > 0 && len(out) == 0 {
		return nil, upstream.Shape(op, "none of %d events was readable", total)
	}
	if out == nil {
		out = []models.RawEvent{}
	}
	return out, nil
}

func toRawEvent(ev sbEvent) (models.RawEvent, bool) {
	if ev.ID == "" || len(ev.Competitions) == 0 {
		return models.RawEvent{}, false
	}
	comp := ev.Competitions[0]
	home, away, ok := sides(comp.Competitors)
	if !ok {
		return models.RawEvent{}, false
	}

	status := ev.Status
	if status.Type.State == "" && comp.Status != nil {
		status = *comp.Status
	}
	state, ok := lifecycle(status.Type)
	if !ok {
		return models.RawEvent{}, false
	}

	start, ok := util.ParseTime(ev.Date)
	if !ok || start.IsZero() {
		return models.RawEvent{}, false
	}
	return models.RawEvent{
		ID:           ev.ID,
		HomeTeamName: home.Team.DisplayName,
		AwayTeamName: away.Team.DisplayName,
		HomeScore:    util.ParseIntDefault(home.Score, 0),
		AwayScore:    util.ParseIntDefault(away.Score, 0),
		State:        state,
		StatusText:   firstNonEmpty(status.Type.ShortDetail, status.Type.Description),
		Period:       status.Period,
		Clock:        status.DisplayClock,
		StartTime:    start,
	}, true
}

func sides(cs []sbCompetitor) (home, away sbCompetitor, ok bool) {
	var gotHome, gotAway bool
	for _, c := range cs {
		switch strings.ToLower(c.HomeAway) {
		case "home":
			home, gotHome = c, true
		case "away":
			away, gotAway = c, true
		}
	}
	return home, away, gotHome && gotAway && home.Team.DisplayName != "" && away.Team.DisplayName != ""
}

// lifecycle maps ESPN's pre/in/post states.
func lifecycle(t sbStatusType) (models.LifecycleState, bool) {
	switch strings.ToLower(t.State) {
	case "pre":
		return models.StateScheduled, true
	case "in":
		return models.StateLive, true
	case "post":
		return models.StateFinal, true
	}
	if t.Completed {
		return models.StateFinal, true
	}
	return "", false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
