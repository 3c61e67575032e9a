package rules

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/brensch/pitchdf/alias"
	"github.com/brensch/pitchdf/corrections"
	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

// RunnerMovement is one runner's base transition concurrent with a sub-event.
type RunnerMovement struct {
	RunnerID       int64
	RunnerName     string
	Start          game.Base // BaseNone for the batter
	End            game.Base // BaseNone when out or unrecorded
	IsOut          bool
	IsScoringEvent bool
	PlayIndex      int
	Event          string
}

// MovementFromFeed converts a feed runner record.
func MovementFromFeed(r feed.Runner) (RunnerMovement, error) {
	start, err := game.ParseBase(feed.Str(r.Movement.Start))
	if err != nil {
		return RunnerMovement{}, fmt.Errorf("%w: runner %d start: %v", ErrMalformedFeed, r.Details.Runner.ID, err)
	}
	if start == game.Score {
		return RunnerMovement{}, fmt.Errorf("%w: runner %d starts at score", ErrMalformedFeed, r.Details.Runner.ID)
	}
	end, err := game.ParseBase(feed.Str(r.Movement.End))
	if err != nil {
		return RunnerMovement{}, fmt.Errorf("%w: runner %d end: %v", ErrMalformedFeed, r.Details.Runner.ID, err)
	}
	return RunnerMovement{
		RunnerID:       r.Details.Runner.ID,
		RunnerName:     r.Details.Runner.FullName,
		Start:          start,
		End:            end,
		IsOut:          feed.Bool(r.Movement.IsOut),
		IsScoringEvent: r.Details.IsScoringEvent,
		PlayIndex:      r.Details.PlayIndex,
		Event:          r.Details.Event,
	}, nil
}

// normalize rewrites the feed's home-plate quirks.
func normalize(m RunnerMovement) RunnerMovement {
	// "4B" as a start means the runner was already past third.
	if m.Start == game.HomeQuirk {
		m.Start = game.Third
	}
	if m.IsOut {
		m.End = game.BaseNone
	}
	if m.IsScoringEvent && m.End == game.HomeQuirk {
		m.End = game.Score
	}
	return m
}

// RunnerResolver turns the unordered runner records of one sub-event into
// ordered, valid base-state transitions.
type RunnerResolver struct {
	corrections *corrections.Table
	names       *alias.Resolver
	logger      *slog.Logger
}

func NewRunnerResolver(table *corrections.Table, names *alias.Resolver, logger *slog.Logger) *RunnerResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if names == nil {
		names = alias.NewResolver(alias.DefaultTable(), logger)
	}
	return &RunnerResolver{corrections: table, names: names, logger: logger}
}

// Resolve applies moves to s. On error s reflects the records applied so far;
// the caller is expected to abandon the game.
func (r *RunnerResolver) Resolve(s *game.GameState, moves []RunnerMovement) error {
	work := make([]RunnerMovement, 0, len(moves))
	for _, m := range moves {
		fixed, keep, err := r.correct(s, normalize(m))
		if err != nil {
			return err
		}
		if keep {
			work = append(work, normalize(fixed))
		}
	}

	// Outs first, so a runner being put out is never stuck behind another
	// record claiming the same base.
	sort.SliceStable(work, func(i, j int) bool { return work[i].IsOut && !work[j].IsOut })

	queue := make([]int, len(work))
	for i := range queue {
		queue[i] = i
	}
	done := make(map[int64]bool, len(work))
	// stalled counts consecutive rotations without progress. After one full
	// stalled pass every record is treated as the last one (so the skipped
	// step repair below may fire); after a second the queue is deadlocked.
	stalled := 0

	for len(queue) > 0 {
		m := &work[queue[0]]

		if done[m.RunnerID] || (m.End.Live() && s.Occupant(m.End) == m.RunnerID) {
			queue = queue[1:]
			stalled = 0
			continue
		}

		if m.Start == game.BaseNone && m.End == game.BaseNone && m.IsOut {
			m.Start = s.BaseOf(m.RunnerID)
		}

		last := len(queue) == 1 || stalled >= len(queue)

		// A runner recorded on one base but scoring from another: the feed
		// skipped the intermediate step.
		if last && m.End == game.Score && m.Start.Live() && s.Occupant(m.Start) != m.RunnerID {
			if b := s.BaseOf(m.RunnerID); b != game.BaseNone {
				s.SetOccupant(b, game.Empty)
			}
			s.SetOccupant(m.Start, m.RunnerID)
			s.RecomputeBaseState()
			r.logger.Debug("runner relocated before scoring", "runner", m.RunnerID, "base", m.Start.String())
		}

		if r.applicable(s, m, work, queue[1:]) {
			r.apply(s, *m)
			queue = queue[1:]
			stalled = 0
			if m.End == game.BaseNone || m.End == game.Score {
				done[m.RunnerID] = true
			}
			continue
		}

		if len(queue) == 1 || stalled >= 2*len(queue) {
			return &UnresolvableMovementError{
				Movement:  *m,
				Remaining: len(queue),
				Inning:    s.Inning,
				Half:      s.Half,
				Outs:      s.Outs,
				First:     s.First,
				Second:    s.Second,
				Third:     s.Third,
			}
		}
		queue = append(queue[1:], queue[0])
		stalled++
	}
	return nil
}

// correct applies the correction table. keep is false for skipped records.
func (r *RunnerResolver) correct(s *game.GameState, m RunnerMovement) (RunnerMovement, bool, error) {
	if r.corrections.Len() == 0 {
		return m, true, nil
	}
	key := corrections.Key{GameID: s.GameID, Inning: s.Inning, Half: s.Half, Runner: m.RunnerID, Event: m.Event}
	e, ok := r.corrections.Lookup(key)
	if !ok {
		return m, true, nil
	}
	r.logger.Info("feed correction applied", "key", key.String(), "action", string(e.Action), "note", e.Note,
		"table_version", r.corrections.Version())
	if e.Action == corrections.Skip {
		return m, false, nil
	}

	if e.Fields.Start != nil {
		b, err := game.ParseBase(*e.Fields.Start)
		if err != nil {
			return m, false, fmt.Errorf("correction %s: %w", key, err)
		}
		m.Start = b
	}
	if e.Fields.End != nil {
		b, err := game.ParseBase(*e.Fields.End)
		if err != nil {
			return m, false, fmt.Errorf("correction %s: %w", key, err)
		}
		m.End = b
	}
	if e.Fields.IsOut != nil {
		m.IsOut = *e.Fields.IsOut
	}
	if e.Fields.IsScoringEvent != nil {
		m.IsScoringEvent = *e.Fields.IsScoringEvent
	}
	return m, true, nil
}

// applicable reports whether m can be applied to the current state. pending
// holds the queue indexes still waiting behind m.
func (r *RunnerResolver) applicable(s *game.GameState, m *RunnerMovement, work []RunnerMovement, pending []int) bool {
	if m.Start != game.BaseNone && s.Occupant(m.Start) != m.RunnerID {
		return false
	}
	if !m.End.Live() || s.Outs >= 3 {
		return true
	}
	if occ := s.Occupant(m.End); occ != game.Empty && occ != m.RunnerID {
		return false
	}
	// Runners cannot pass each other: a base on the way that is held by a
	// runner who still has a record to apply blocks until that runner moves.
	for b := m.Start + 1; b < m.End; b++ {
		occ := s.Occupant(b)
		if occ == game.Empty || occ == m.RunnerID {
			continue
		}
		for _, idx := range pending {
			if work[idx].RunnerID == occ {
				return false
			}
		}
	}
	return true
}

func (r *RunnerResolver) apply(s *game.GameState, m RunnerMovement) {
	// A runner holds at most one base; leaving covers the recorded start
	// as well as stale positions from duplicated records.
	if b := s.BaseOf(m.RunnerID); b != game.BaseNone && b != m.End {
		s.SetOccupant(b, game.Empty)
	}
	if m.End.Live() {
		s.SetOccupant(m.End, m.RunnerID)
	}
	if m.End == game.Score {
		s.AddRun()
	}
	s.RecomputeBaseState()
	if m.IsOut && s.Outs < 3 {
		s.Outs++
	}
	r.names.Register(s.RunnerNames, m.RunnerName, m.RunnerID)
}
