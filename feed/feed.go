// Package feed holds the typed subset of the statsapi live-feed document that
// the reconciliation engine consumes.
//
// Optional numeric fields are pointers: absence is meaningful (the engine
// substitutes an explicit unknown sentinel) and must not collapse to zero.
package feed

// Game is one per-game live-feed document.
type Game struct {
	GamePk   int64    `json:"gamePk"`
	GameData GameData `json:"gameData"`
	LiveData LiveData `json:"liveData"`
}

type GameData struct {
	Game     GameInfo `json:"game"`
	Datetime Datetime `json:"datetime"`
	Teams    Teams    `json:"teams"`
}

type GameInfo struct {
	ID   string `json:"id"` // e.g. "2017/07/18/tormlb-bosmlb-1"
	Pk   int64  `json:"pk"`
	Type string `json:"type"`
}

type Datetime struct {
	DateTime     string `json:"dateTime"` // RFC3339, UTC
	OfficialDate string `json:"officialDate"`
	Time         string `json:"time"` // local "h:mm"
	AmPm         string `json:"ampm"` // "AM" | "PM"
}

type Teams struct {
	Away Team `json:"away"`
	Home Team `json:"home"`
}

type Team struct {
	ID           int64  `json:"id"`
	TeamCode     string `json:"teamCode"`
	Abbreviation string `json:"abbreviation"`
}

type LiveData struct {
	Plays     Plays     `json:"plays"`
	Linescore Linescore `json:"linescore"`
	Boxscore  Boxscore  `json:"boxscore"`
}

type Plays struct {
	AllPlays []Play `json:"allPlays"`
}

type Linescore struct {
	Innings []Inning `json:"innings"`
}

// Inning is one linescore row. Home is nil when the bottom half was not played.
type Inning struct {
	Num  int         `json:"num"`
	Away InningRuns  `json:"away"`
	Home *InningRuns `json:"home,omitempty"`
}

type InningRuns struct {
	Runs *int `json:"runs,omitempty"`
}

type Boxscore struct {
	Officials []Official `json:"officials"`
}

type Official struct {
	Official     Person `json:"official"`
	OfficialType string `json:"officialType"`
}

type Person struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
}

// Play is one plate appearance.
type Play struct {
	Result     Result      `json:"result"`
	About      About       `json:"about"`
	Count      Count       `json:"count"`
	Matchup    Matchup     `json:"matchup"`
	PlayEvents []PlayEvent `json:"playEvents"`
	Runners    []Runner    `json:"runners"`
}

type Result struct {
	Type        string `json:"type"`
	Event       string `json:"event"`
	Description string `json:"description"`
	AwayScore   int    `json:"awayScore"`
	HomeScore   int    `json:"homeScore"`
}

type About struct {
	AtBatIndex int    `json:"atBatIndex"`
	HalfInning string `json:"halfInning"`
	Inning     int    `json:"inning"`
	StartTime  string `json:"startTime"`
}

type Count struct {
	Balls   int `json:"balls"`
	Strikes int `json:"strikes"`
	Outs    int `json:"outs"`
}

type Matchup struct {
	Batter    Person `json:"batter"`
	Pitcher   Person `json:"pitcher"`
	BatSide   Code   `json:"batSide"`
	PitchHand Code   `json:"pitchHand"`
}

type Code struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// PlayEvent is one sub-event of a plate appearance: a pitch, an action, or a
// marker such as a pickoff attempt.
type PlayEvent struct {
	Type      string       `json:"type"`
	Index     int          `json:"index"`
	Details   EventDetails `json:"details"`
	Count     Count        `json:"count"`
	PitchData *PitchData   `json:"pitchData,omitempty"`
	HitData   *HitData     `json:"hitData,omitempty"`
	Player    *Person      `json:"player,omitempty"`
	Umpire    *Person      `json:"umpire,omitempty"`
	IsPitch   bool         `json:"isPitch"`
}

type EventDetails struct {
	Description string `json:"description"`
	Event       string `json:"event"`
	EventType   string `json:"eventType"`
	Code        string `json:"code"`
	Call        *Code  `json:"call,omitempty"`
	Type        *Code  `json:"type,omitempty"`
}

type PitchData struct {
	StartSpeed       *float64    `json:"startSpeed,omitempty"`
	EndSpeed         *float64    `json:"endSpeed,omitempty"`
	StrikeZoneTop    *float64    `json:"strikeZoneTop,omitempty"`
	StrikeZoneBottom *float64    `json:"strikeZoneBottom,omitempty"`
	Coordinates      Coordinates `json:"coordinates"`
	Breaks           Breaks      `json:"breaks"`
	Zone             *int        `json:"zone,omitempty"`
	TypeConfidence   *float64    `json:"typeConfidence,omitempty"`
	NastyFactor      *float64    `json:"nastyFactor,omitempty"`
}

type Coordinates struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	PX   *float64 `json:"pX,omitempty"`
	PZ   *float64 `json:"pZ,omitempty"`
	PfxX *float64 `json:"pfxX,omitempty"`
	PfxZ *float64 `json:"pfxZ,omitempty"`
	X0   *float64 `json:"x0,omitempty"`
	Y0   *float64 `json:"y0,omitempty"`
	Z0   *float64 `json:"z0,omitempty"`
	VX0  *float64 `json:"vX0,omitempty"`
	VY0  *float64 `json:"vY0,omitempty"`
	VZ0  *float64 `json:"vZ0,omitempty"`
	AX   *float64 `json:"aX,omitempty"`
	AY   *float64 `json:"aY,omitempty"`
	AZ   *float64 `json:"aZ,omitempty"`
}

type Breaks struct {
	BreakAngle    *float64 `json:"breakAngle,omitempty"`
	BreakLength   *float64 `json:"breakLength,omitempty"`
	BreakY        *float64 `json:"breakY,omitempty"`
	SpinRate      *float64 `json:"spinRate,omitempty"`
	SpinDirection *float64 `json:"spinDirection,omitempty"`
}

type HitData struct {
	LaunchSpeed   *float64       `json:"launchSpeed,omitempty"`
	LaunchAngle   *float64       `json:"launchAngle,omitempty"`
	TotalDistance *float64       `json:"totalDistance,omitempty"`
	Trajectory    string         `json:"trajectory,omitempty"`
	Hardness      string         `json:"hardness,omitempty"`
	Location      string         `json:"location,omitempty"`
	Coordinates   HitCoordinates `json:"coordinates"`
}

type HitCoordinates struct {
	CoordX *float64 `json:"coordX,omitempty"`
	CoordY *float64 `json:"coordY,omitempty"`
}

// Runner is one runner-movement record, concurrent with the play event at
// Details.PlayIndex (or with the end of the at-bat when PlayIndex equals the
// number of play events).
type Runner struct {
	Movement Movement      `json:"movement"`
	Details  RunnerDetails `json:"details"`
}

type Movement struct {
	OriginBase *string `json:"originBase,omitempty"`
	Start      *string `json:"start,omitempty"`
	End        *string `json:"end,omitempty"`
	OutBase    *string `json:"outBase,omitempty"`
	IsOut      *bool   `json:"isOut,omitempty"`
	OutNumber  *int    `json:"outNumber,omitempty"`
}

type RunnerDetails struct {
	Event          string `json:"event"`
	EventType      string `json:"eventType"`
	MovementReason string `json:"movementReason,omitempty"`
	Runner         Person `json:"runner"`
	IsScoringEvent bool   `json:"isScoringEvent"`
	PlayIndex      int    `json:"playIndex"`
}
