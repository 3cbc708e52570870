package models

// InjuryNote is a single player availability note.
type InjuryNote struct {
	Team   CanonicalID `json:"team"`
	Player string      `json:"player"`
	Status string      `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// ProbabilityReading is the win-probability leg, oriented to the event's home/away.
// The availability flags tell pregame projections apart from live ones; the
// live series is empty until tip-off.
type ProbabilityReading struct {
	HomeWinProb        float64      `json:"homeWinProb"`
	AwayWinProb        float64      `json:"awayWinProb"`
	PregameHomeWinProb float64      `json:"pregameHomeWinProb"`
	PregameAwayWinProb float64      `json:"pregameAwayWinProb"`
	LiveAvailable      bool         `json:"liveAvailable"`
	PregameAvailable   bool         `json:"pregameAvailable"`
	Injuries           []InjuryNote `json:"injuries,omitempty"`
}

// Swapped returns the reading with home and away exchanged.
func (p ProbabilityReading) Swapped() ProbabilityReading {
	out := p
	out.HomeWinProb, out.AwayWinProb = p.AwayWinProb, p.HomeWinProb
	out.PregameHomeWinProb, out.PregameAwayWinProb = p.PregameAwayWinProb, p.PregameHomeWinProb
	out.Injuries = append([]InjuryNote(nil), p.Injuries...)
	return out
}

// ForSide picks the probability used for comparison: pregame while the event
// is scheduled, live once it is in progress. ok is false when that series is missing.
func (p ProbabilityReading) ForSide(side Side, state LifecycleState) (float64, bool) {
	switch state {
	case StateScheduled:
		if !p.PregameAvailable {
			return 0, false
		}
		if side == SideAway {
			return p.PregameAwayWinProb, true
		}
		return p.PregameHomeWinProb, true
	case StateLive:
		if !p.LiveAvailable {
			return 0, false
		}
		if side == SideAway {
			return p.AwayWinProb, true
		}
		return p.HomeWinProb, true
	default:
		return 0, false
	}
}
