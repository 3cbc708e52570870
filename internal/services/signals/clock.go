package signals

import (
	"math"
	"strconv"
	"strings"

	"CourtArb/internal/domain/models"
)

const (
	QuarterSeconds    = 12 * 60
	Quarters          = 4
	RegulationSeconds = QuarterSeconds * Quarters
	OvertimeCap       = 5 * 60
)

// PeriodLabel renders an NBA period number ("Q3", "OT1").
func PeriodLabel(period int) string {
	switch {
	case period <= 0:
		return ""
	case period <= Quarters:
		return "Q" + strconv.Itoa(period)
	default:
		return "OT" + strconv.Itoa(period-Quarters)
	}
}

// EstimateRemaining converts a period label and a game clock into seconds of
// game time left. Scheduled games count as a full regulation game. ok is
// false when the label or clock cannot be interpreted.
func EstimateRemaining(state models.LifecycleState, label, clock string) (int, bool) {
	switch state {
	case models.StateScheduled:
		return RegulationSeconds, true
	case models.StateFinal:
		return 0, true
	}

	label = strings.ToUpper(strings.TrimSpace(label))
	switch {
	case label == "FINAL" || strings.HasPrefix(label, "FINAL/"):
		return 0, true
	case label == "HALF" || label == "HALFTIME":
		return 2 * QuarterSeconds, true
	case strings.HasPrefix(label, "OT"):
		secs, ok := parseClock(clock)
		if !ok {
			return 0, false
		}
		if secs > OvertimeCap {
			secs = OvertimeCap
		}
		return secs, true
	case strings.HasPrefix(label, "Q"):
		q, err := strconv.Atoi(label[1:])
		if err != nil || q < 1 || q > Quarters {
			return 0, false
		}
		secs, ok := parseClock(clock)
		if !ok {
			return 0, false
		}
		if secs > QuarterSeconds {
			secs = QuarterSeconds
		}
		return secs + (Quarters-q)*QuarterSeconds, true
	}
	return 0, false
}

// parseClock accepts "MM:SS" and the sub-minute "SS.t" form.
func parseClock(clock string) (int, bool) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return 0, false
	}
	if mm, ss, found := strings.Cut(clock, ":"); found {
		m, err := strconv.Atoi(mm)
		if err != nil || m < 0 {
			return 0, false
		}
		s, err := strconv.ParseFloat(ss, 64)
		if err != nil || !finite(s) || s < 0 || s >= 60 {
			return 0, false
		}
		return m*60 + int(s), true
	}
	s, err := strconv.ParseFloat(clock, 64)
	if err != nil || !finite(s) || s < 0 {
		return 0, false
	}
	return int(s), true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
