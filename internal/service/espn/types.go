package espn

// Wire types for the ESPN site API. Only the fields the adapters read are declared.

type scoreboardResponse struct {
	Events []sbEvent `json:"events"`
}

type sbEvent struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Name         string          `json:"name"`
	Competitions []sbCompetition `json:"competitions"`
	Status       sbStatus        `json:"status"`
}

type sbCompetition struct {
	Competitors []sbCompetitor `json:"competitors"`
	Status      *sbStatus      `json:"status,omitempty"`
}

type sbCompetitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     sbTeam `json:"team"`
}

type sbTeam struct {
	ID               string `json:"id"`
	Abbreviation     string `json:"abbreviation"`
	DisplayName      string `json:"displayName"`
	ShortDisplayName string `json:"shortDisplayName"`
	Name             string `json:"name"`
}

type sbStatus struct {
	DisplayClock string       `json:"displayClock"`
	Period       int          `json:"period"`
	Type         sbStatusType `json:"type"`
}

type sbStatusType struct {
	State       string `json:"state"`
	Completed   bool   `json:"completed"`
	Description string `json:"description"`
	ShortDetail string `json:"shortDetail"`
}

type summaryResponse struct {
	Header         summaryHeader     `json:"header"`
	Predictor      *predictor        `json:"predictor,omitempty"`
	WinProbability []winProbPoint    `json:"winprobability"`
	Injuries       []teamInjuryBlock `json:"injuries"`
}

type summaryHeader struct {
	ID           string          `json:"id"`
	Competitions []sbCompetition `json:"competitions"`
}

type predictor struct {
	HomeTeam predictorSide `json:"homeTeam"`
	AwayTeam predictorSide `json:"awayTeam"`
}

type predictorSide struct {
	ID             string `json:"id"`
	GameProjection string `json:"gameProjection"`
}

type winProbPoint struct {
	HomeWinPercentage *float64 `json:"homeWinPercentage"`
	PlayID            string   `json:"playId"`
}

type teamInjuryBlock struct {
	Team     sbTeam        `json:"team"`
	Injuries []injuryEntry `json:"injuries"`
}

type injuryEntry struct {
	Status  string `json:"status"`
	Athlete struct {
		DisplayName string `json:"displayName"`
	} `json:"athlete"`
	Details *struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	} `json:"details,omitempty"`
}
