package rules

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dumpState(s *game.GameState) string {
	return fmt.Sprintf("%s %d outs=%d 1B=%d 2B=%d 3B=%d mask=%03b score=%d-%d count=%d-%d",
		s.Half, s.Inning, s.Outs, s.First, s.Second, s.Third, s.BaseState,
		s.AwayScore, s.HomeScore, s.Balls, s.Strikes)
}

// checkInvariants fails the test when the state breaks a structural rule.
func checkInvariants(t *testing.T, s *game.GameState) {
	t.Helper()
	var mask uint8
	seen := map[int64]bool{}
	for i, b := range game.LiveBases {
		id := s.Occupant(b)
		if id == game.Empty {
			continue
		}
		mask |= 1 << i
		if seen[id] {
			t.Fatalf("runner %d on two bases: %s", id, dumpState(s))
		}
		seen[id] = true
	}
	if mask != s.BaseState {
		t.Fatalf("mask=%03b want=%03b: %s", s.BaseState, mask, dumpState(s))
	}
	if s.Outs < 0 || s.Outs > 3 {
		t.Fatalf("outs=%d out of range: %s", s.Outs, dumpState(s))
	}
}

func newState(half game.Half) *game.GameState {
	s := game.New()
	s.GameID = "2017/07/18/tormlb-bosmlb-1"
	s.Half = half
	return s
}

func place(s *game.GameState, first, second, third int64) {
	s.First, s.Second, s.Third = first, second, third
	s.RecomputeBaseState()
}

func mv(id int64, start, end game.Base, out bool) RunnerMovement {
	return RunnerMovement{
		RunnerID:       id,
		RunnerName:     fmt.Sprintf("Runner %d", id),
		Start:          start,
		End:            end,
		IsOut:          out,
		IsScoringEvent: end == game.Score,
		Event:          "Single",
	}
}

func pitchEv(code, description string, balls, strikes int) feed.PlayEvent {
	return feed.PlayEvent{
		Type:    EventPitch,
		IsPitch: true,
		Details: feed.EventDetails{Description: description, Call: &feed.Code{Code: code}},
		Count:   feed.Count{Balls: balls, Strikes: strikes},
	}
}

func actionEv(label, description string, player *feed.Person) feed.PlayEvent {
	return feed.PlayEvent{
		Type:    EventAction,
		Details: feed.EventDetails{Event: label, Description: description},
		Player:  player,
	}
}

func ptr[T any](v T) *T { return &v }
