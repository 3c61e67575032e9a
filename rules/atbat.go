package rules

import (
	"log/slog"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

// Sub-event types.
const (
	EventPitch   = "pitch"
	EventAction  = "action"
	EventPickoff = "pickoff"
	EventStepoff = "stepoff"
	EventNoPitch = "no_pitch"
)

// InningKey identifies a half-inning.
type InningKey struct {
	Half   game.Half
	Inning int
}

// InningScore is the cumulative score at the end of a half-inning.
type InningScore struct {
	Away int
	Home int
}

// InningScores walks the linescore and returns the cumulative score after
// every half-inning. A bottom half that was not played carries the score
// after the top half.
func InningScores(ls feed.Linescore) map[InningKey]InningScore {
	out := make(map[InningKey]InningScore, 2*len(ls.Innings))
	var away, home int
	for _, inn := range ls.Innings {
		if inn.Away.Runs != nil {
			away += *inn.Away.Runs
		}
		out[InningKey{Half: game.Top, Inning: inn.Num}] = InningScore{Away: away, Home: home}
		if inn.Home != nil && inn.Home.Runs != nil {
			home += *inn.Home.Runs
		}
		out[InningKey{Half: game.Bottom, Inning: inn.Num}] = InningScore{Away: away, Home: home}
	}
	return out
}

// slot is one step of an at-bat timeline: a sub-event (nil for the trailing
// slot) and the runner movements concurrent with it.
type slot struct {
	event *feed.PlayEvent
	moves []RunnerMovement
}

// AtBatSequencer drives one plate appearance through the pitch, action and
// runner components.
type AtBatSequencer struct {
	pitches *PitchProcessor
	actions *ActionProcessor
	runners *RunnerResolver
	innings map[InningKey]InningScore
	logger  *slog.Logger
}

func NewAtBatSequencer(pitches *PitchProcessor, actions *ActionProcessor, runners *RunnerResolver,
	innings map[InningKey]InningScore, logger *slog.Logger) *AtBatSequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AtBatSequencer{
		pitches: pitches,
		actions: actions,
		runners: runners,
		innings: innings,
		logger:  logger,
	}
}

// Process applies one at-bat to s.
func (a *AtBatSequencer) Process(s *game.GameState, play feed.Play) error {
	half := game.Half(play.About.HalfInning)
	if half != game.Top && half != game.Bottom {
		return malformed("at-bat %d: half inning %q", play.About.AtBatIndex, play.About.HalfInning)
	}

	s.Inning = play.About.Inning
	if s.Half != half {
		s.Half = half
		s.ClearBases()
		s.Outs = 0
		clear(s.RunnerNames)
	}
	sc := a.innings[InningKey{Half: half, Inning: s.Inning}]
	s.AwayScoreAfterInning, s.HomeScoreAfterInning = sc.Away, sc.Home

	s.Balls, s.Strikes = 0, 0
	s.Batter = play.Matchup.Batter.ID
	s.Pitcher = play.Matchup.Pitcher.ID
	s.BatSide = play.Matchup.BatSide.Code
	s.PitchHand = play.Matchup.PitchHand.Code
	s.HomeScoreAfterAB = play.Result.HomeScore
	s.AwayScoreAfterAB = play.Result.AwayScore
	s.AtBatIndex = play.About.AtBatIndex

	if play.Result.Event == "" {
		if len(play.PlayEvents) == 0 {
			a.logger.Debug("skipping empty at-bat", "game", s.GameID, "at_bat", s.AtBatIndex)
			return nil
		}
		return &FaultyAtBatError{AtBatIndex: play.About.AtBatIndex, StartTime: play.About.StartTime}
	}
	s.NoteEvent(play.Result.Event)

	if _, ok := s.PitchCounts[s.Pitcher]; !ok {
		s.PitchCounts[s.Pitcher] = 0
	}
	s.CurPitchCount = s.PitchCounts[s.Pitcher]

	timeline, err := buildTimeline(play)
	if err != nil {
		return err
	}
	for _, sl := range timeline {
		if sl.event != nil {
			if err := a.processEvent(s, *sl.event); err != nil {
				return err
			}
		}
		if err := a.runners.Resolve(s, sl.moves); err != nil {
			return err
		}
	}

	if s.AwayScore != play.Result.AwayScore || s.HomeScore != play.Result.HomeScore {
		return &ScoreMismatchError{
			Away:     s.AwayScore,
			Home:     s.HomeScore,
			WantAway: play.Result.AwayScore,
			WantHome: play.Result.HomeScore,
		}
	}

	// The feed is the authority on outs.
	if s.Outs != play.Count.Outs {
		a.logger.Debug("outs drift", "game", s.GameID, "at_bat", s.AtBatIndex, "got", s.Outs, "want", play.Count.Outs)
	}
	s.Outs = play.Count.Outs
	return nil
}

func (a *AtBatSequencer) processEvent(s *game.GameState, ev feed.PlayEvent) error {
	switch ev.Type {
	case EventPitch:
		return a.pitches.Process(s, ev)
	case EventAction:
		return a.actions.Process(s, ev)
	case EventPickoff, EventStepoff, EventNoPitch:
		return nil
	}
	return &UnknownPlayTypeError{Scope: "event", Type: ev.Type}
}

// buildTimeline pairs every sub-event with its runner movements, plus a
// trailing slot for movements attributed to the end of the at-bat.
func buildTimeline(play feed.Play) ([]slot, error) {
	timeline := make([]slot, len(play.PlayEvents)+1)
	for i := range play.PlayEvents {
		timeline[i].event = &play.PlayEvents[i]
	}

	for _, r := range play.Runners {
		mv := r.Movement
		if mv.Start == nil && mv.End == nil && !feed.Bool(mv.IsOut) {
			continue
		}
		if mv.Start != nil && mv.End != nil && *mv.Start == *mv.End {
			continue
		}
		m, err := MovementFromFeed(r)
		if err != nil {
			return nil, err
		}
		idx := r.Details.PlayIndex
		if idx < 0 || idx >= len(timeline) {
			return nil, malformed("runner %d play index %d outside at-bat with %d events",
				m.RunnerID, idx, len(play.PlayEvents))
		}
		timeline[idx].moves = append(timeline[idx].moves, m)
	}
	return timeline, nil
}
