// Package game defines the mutable state of one baseball game as it is
// reconstructed pitch by pitch.
//
// GameState is pure data. The rules package owns every transition; the only
// helpers here keep the derived base bitmask consistent with occupancy and
// produce immutable snapshots for emitted pitch records.
package game

import (
	"fmt"
	"time"
)

// Empty marks an unoccupied base, and an unknown player id.
const Empty int64 = -1

// Half is one team's turn at bat within an inning.
type Half string

const (
	Top    Half = "top"    // away team batting
	Bottom Half = "bottom" // home team batting
)

// Base is a base code as it appears in runner movements.
type Base int8

const (
	BaseNone  Base = iota // batter (start) or out / no destination (end)
	First                 // 1B
	Second                // 2B
	Third                 // 3B
	Score                 // crossed home plate
	HomeQuirk             // "4B": the feed's code for home plate
)

// ParseBase converts a feed base code. The empty string is BaseNone.
func ParseBase(code string) (Base, error) {
	switch code {
	case "":
		return BaseNone, nil
	case "1B":
		return First, nil
	case "2B":
		return Second, nil
	case "3B":
		return Third, nil
	case "4B":
		return HomeQuirk, nil
	case "score":
		return Score, nil
	}
	return BaseNone, fmt.Errorf("unknown base code %q", code)
}

func (b Base) String() string {
	switch b {
	case BaseNone:
		return "-"
	case First:
		return "1B"
	case Second:
		return "2B"
	case Third:
		return "3B"
	case Score:
		return "score"
	case HomeQuirk:
		return "4B"
	}
	return fmt.Sprintf("Base(%d)", int8(b))
}

// Live reports whether b is one of first, second or third.
func (b Base) Live() bool {
	return b == First || b == Second || b == Third
}

// LiveBases lists the occupiable bases in order.
var LiveBases = [3]Base{First, Second, Third}

// GameState is the evolving state of a single game. It is created once per
// game, partially reset at half-inning boundaries and mutated in place.
type GameState struct {
	// Identifying and scheduling metadata.
	GameID       string
	GamePk       int64
	Date         time.Time
	HomeTeam     string
	AwayTeam     string
	DoubleHeader int

	Inning  int
	Half    Half
	Outs    int
	Balls   int
	Strikes int

	First  int64
	Second int64
	Third  int64
	// BaseState is bit0=first, bit1=second, bit2=third. Only RecomputeBaseState writes it.
	BaseState uint8

	HomeScore int
	AwayScore int
	// ScoreTracking gates run counting until the game has been initialized.
	ScoreTracking bool

	// Feed-declared ground truth for validation.
	HomeScoreAfterAB     int
	AwayScoreAfterAB     int
	HomeScoreAfterInning int
	AwayScoreAfterInning int

	Batter    int64
	Pitcher   int64
	BatSide   string
	PitchHand string

	PitchCounts   map[int64]int
	CurPitchCount int

	AtBatIndex int
	Umpire     int64

	Event        string
	UniqueEvents []string

	// RunnerNames maps a normalized display name to the id of a runner seen on
	// base this half-inning.
	RunnerNames map[string]int64
}

// New returns a GameState ready for the first at-bat of a game.
func New() *GameState {
	return &GameState{
		Inning:        1,
		Half:          "",
		First:         Empty,
		Second:        Empty,
		Third:         Empty,
		ScoreTracking: true,
		Batter:        Empty,
		Pitcher:       Empty,
		Umpire:        Empty,
		AtBatIndex:    -1,
		PitchCounts:   make(map[int64]int),
		RunnerNames:   make(map[string]int64),
	}
}

// Occupant returns the runner on a live base, or Empty.
func (s *GameState) Occupant(b Base) int64 {
	switch b {
	case First:
		return s.First
	case Second:
		return s.Second
	case Third:
		return s.Third
	}
	return Empty
}

// SetOccupant places id (or Empty) on a live base. The bitmask is not touched;
// call RecomputeBaseState once the movement is complete.
func (s *GameState) SetOccupant(b Base, id int64) {
	switch b {
	case First:
		s.First = id
	case Second:
		s.Second = id
	case Third:
		s.Third = id
	}
}

// BaseOf returns the live base held by id, or BaseNone.
func (s *GameState) BaseOf(id int64) Base {
	if id == Empty {
		return BaseNone
	}
	for _, b := range LiveBases {
		if s.Occupant(b) == id {
			return b
		}
	}
	return BaseNone
}

// RecomputeBaseState rebuilds the bitmask from occupancy.
func (s *GameState) RecomputeBaseState() {
	var mask uint8
	for i, b := range LiveBases {
		if s.Occupant(b) != Empty {
			mask |= 1 << i
		}
	}
	s.BaseState = mask
}

// ClearBases empties all bases and the bitmask.
func (s *GameState) ClearBases() {
	s.First, s.Second, s.Third = Empty, Empty, Empty
	s.BaseState = 0
}

// AddRun credits a run to the batting half.
func (s *GameState) AddRun() {
	if !s.ScoreTracking {
		return
	}
	switch s.Half {
	case Top:
		s.AwayScore++
	case Bottom:
		s.HomeScore++
	}
}

// NoteEvent records the at-bat's event label and remembers distinct labels.
func (s *GameState) NoteEvent(event string) {
	s.Event = event
	for _, e := range s.UniqueEvents {
		if e == event {
			return
		}
	}
	s.UniqueEvents = append(s.UniqueEvents, event)
}

// Snapshot is an immutable copy of the state at pitch time.
type Snapshot struct {
	GameID       string
	GamePk       int64
	Date         time.Time
	HomeTeam     string
	AwayTeam     string
	DoubleHeader int

	Inning    int
	Half      Half
	Outs      int
	Balls     int
	Strikes   int
	First     int64
	Second    int64
	Third     int64
	BaseState uint8

	HomeScore            int
	AwayScore            int
	HomeScoreAfterAB     int
	AwayScoreAfterAB     int
	HomeScoreAfterInning int
	AwayScoreAfterInning int

	Batter     int64
	Pitcher    int64
	BatSide    string
	PitchHand  string
	PitchCount int
	AtBatIndex int
	Umpire     int64
	Event      string
}

// Snapshot copies the scalar fields of s.
func (s *GameState) Snapshot() Snapshot {
	return Snapshot{
		GameID:               s.GameID,
		GamePk:               s.GamePk,
		Date:                 s.Date,
		HomeTeam:             s.HomeTeam,
		AwayTeam:             s.AwayTeam,
		DoubleHeader:         s.DoubleHeader,
		Inning:               s.Inning,
		Half:                 s.Half,
		Outs:                 s.Outs,
		Balls:                s.Balls,
		Strikes:              s.Strikes,
		First:                s.First,
		Second:               s.Second,
		Third:                s.Third,
		BaseState:            s.BaseState,
		HomeScore:            s.HomeScore,
		AwayScore:            s.AwayScore,
		HomeScoreAfterAB:     s.HomeScoreAfterAB,
		AwayScoreAfterAB:     s.AwayScoreAfterAB,
		HomeScoreAfterInning: s.HomeScoreAfterInning,
		AwayScoreAfterInning: s.AwayScoreAfterInning,
		Batter:               s.Batter,
		Pitcher:              s.Pitcher,
		BatSide:              s.BatSide,
		PitchHand:            s.PitchHand,
		PitchCount:           s.CurPitchCount,
		AtBatIndex:           s.AtBatIndex,
		Umpire:               s.Umpire,
		Event:                s.Event,
	}
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := *s
	out.PitchCounts = make(map[int64]int, len(s.PitchCounts))
	for k, v := range s.PitchCounts {
		out.PitchCounts[k] = v
	}
	out.RunnerNames = make(map[string]int64, len(s.RunnerNames))
	for k, v := range s.RunnerNames {
		out.RunnerNames[k] = v
	}
	if len(s.UniqueEvents) > 0 {
		out.UniqueEvents = make([]string, len(s.UniqueEvents))
		copy(out.UniqueEvents, s.UniqueEvents)
	}
	return &out
}
