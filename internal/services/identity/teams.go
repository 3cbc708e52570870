package identity

import "CourtArb/internal/domain/models"

type teamRow struct {
	id         models.CanonicalID
	full       string // scoreboard spelling
	nickname   string // probability feed and market spelling
	extraAlias []string
}

// nbaTeams is the static reference table. Keywords are derived from the
// nickname plus the common short forms seen in market titles.
var nbaTeams = []teamRow{
	{"ATL", "Atlanta Hawks", "Hawks", nil},
	{"BOS", "Boston Celtics", "Celtics", nil},
	{"BKN", "Brooklyn Nets", "Nets", nil},
	{"CHA", "Charlotte Hornets", "Hornets", nil},
	{"CHI", "Chicago Bulls", "Bulls", nil},
	{"CLE", "Cleveland Cavaliers", "Cavaliers", []string{"cavs"}},
	{"DAL", "Dallas Mavericks", "Mavericks", []string{"mavs"}},
	{"DEN", "Denver Nuggets", "Nuggets", nil},
	{"DET", "Detroit Pistons", "Pistons", nil},
	{"GSW", "Golden State Warriors", "Warriors", nil},
	{"HOU", "Houston Rockets", "Rockets", nil},
	{"IND", "Indiana Pacers", "Pacers", nil},
	{"LAC", "LA Clippers", "Clippers", nil},
	{"LAL", "Los Angeles Lakers", "Lakers", nil},
	{"MEM", "Memphis Grizzlies", "Grizzlies", []string{"grizz"}},
	{"MIA", "Miami Heat", "Heat", nil},
	{"MIL", "Milwaukee Bucks", "Bucks", nil},
	{"MIN", "Minnesota Timberwolves", "Timberwolves", []string{"wolves", "t wolves"}},
	{"NOP", "New Orleans Pelicans", "Pelicans", []string{"pels"}},
	{"NYK", "New York Knicks", "Knicks", nil},
	{"OKC", "Oklahoma City Thunder", "Thunder", nil},
	{"ORL", "Orlando Magic", "Magic", nil},
	{"PHI", "Philadelphia 76ers", "76ers", []string{"sixers"}},
	{"PHX", "Phoenix Suns", "Suns", nil},
	{"POR", "Portland Trail Blazers", "Trail Blazers", []string{"blazers"}},
	{"SAC", "Sacramento Kings", "Kings", nil},
	{"SAS", "San Antonio Spurs", "Spurs", nil},
	{"TOR", "Toronto Raptors", "Raptors", nil},
	{"UTA", "Utah Jazz", "Jazz", nil},
	{"WAS", "Washington Wizards", "Wizards", nil},
}

// NBATeams builds the identity records from the static table.
func NBATeams() []models.TeamIdentity {
	out := make([]models.TeamIdentity, 0, len(nbaTeams))
	for _, row := range nbaTeams {
		keywords := []string{Normalize(row.nickname)}
		for _, alias := range row.extraAlias {
			keywords = append(keywords, Normalize(alias))
		}
		out = append(out, models.TeamIdentity{
			CanonicalID: row.id,
			DisplayNames: map[models.SourceName]string{
				models.SourceScoreboard: row.full,
				models.SourceWinProb:    row.nickname,
				models.SourceMarket:     row.nickname,
			},
			MatchKeywords: keywords,
		})
	}
	return out
}
