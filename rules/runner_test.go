package rules

import (
	"errors"
	"testing"

	"github.com/brensch/pitchdf/corrections"
	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

func newResolver(t *testing.T, table *corrections.Table) *RunnerResolver {
	t.Helper()
	if table == nil {
		table = corrections.Empty()
	}
	return NewRunnerResolver(table, nil, quietLogger())
}

func TestResolve_SoloHomeRun(t *testing.T) {
	s := newState(game.Top)
	r := newResolver(t, nil)

	if err := r.Resolve(s, []RunnerMovement{mv(10, game.BaseNone, game.Score, false)}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.BaseState != 0 || s.AwayScore != 1 || s.HomeScore != 0 {
		t.Fatalf("after solo HR: %s", dumpState(s))
	}
}

func TestResolve_BasesLoadedWalk(t *testing.T) {
	s := newState(game.Bottom)
	place(s, 1, 2, 3)
	r := newResolver(t, nil)

	// Batter first: the worst order for the worklist.
	moves := []RunnerMovement{
		mv(10, game.BaseNone, game.First, false),
		mv(1, game.First, game.Second, false),
		mv(2, game.Second, game.Third, false),
		mv(3, game.Third, game.Score, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.First != 10 || s.Second != 1 || s.Third != 2 {
		t.Fatalf("bases after walk: %s", dumpState(s))
	}
	if s.BaseState != 0b111 || s.HomeScore != 1 || s.AwayScore != 0 {
		t.Fatalf("state after walk: %s", dumpState(s))
	}
}

func TestResolve_DoublePlay(t *testing.T) {
	s := newState(game.Top)
	place(s, 5, game.Empty, game.Empty)
	r := newResolver(t, nil)

	// The feed reports the batter without start or end.
	moves := []RunnerMovement{
		mv(10, game.BaseNone, game.BaseNone, true),
		mv(5, game.First, game.Second, true),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.Outs != 2 || s.First != game.Empty || s.BaseState != 0 {
		t.Fatalf("after double play: %s", dumpState(s))
	}
	if s.BaseOf(5) != game.BaseNone || s.BaseOf(10) != game.BaseNone {
		t.Fatalf("out runner still on base: %s", dumpState(s))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	s := newState(game.Top)
	place(s, 4, game.Empty, game.Empty)
	r := newResolver(t, nil)
	moves := []RunnerMovement{
		mv(10, game.BaseNone, game.First, false),
		mv(4, game.First, game.Third, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := *s

	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.First != want.First || s.Second != want.Second || s.Third != want.Third ||
		s.Outs != want.Outs || s.AwayScore != want.AwayScore {
		t.Fatalf("reapplying changed state: %s", dumpState(s))
	}
}

func TestResolve_DuplicateRecordInSameEvent(t *testing.T) {
	s := newState(game.Top)
	place(s, 4, game.Empty, game.Empty)
	r := newResolver(t, nil)

	moves := []RunnerMovement{
		mv(4, game.First, game.Second, false),
		mv(4, game.First, game.Second, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.Second != 4 || s.First != game.Empty {
		t.Fatalf("state: %s", dumpState(s))
	}
}

func TestResolve_RunnersDoNotPass(t *testing.T) {
	s := newState(game.Top)
	place(s, 1, 2, game.Empty)
	r := newResolver(t, nil)

	// Runner 1 would jump over runner 2 if applied first.
	moves := []RunnerMovement{
		mv(1, game.First, game.Third, false),
		mv(2, game.Second, game.Score, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.Third != 1 || s.First != game.Empty || s.Second != game.Empty || s.AwayScore != 1 {
		t.Fatalf("state: %s", dumpState(s))
	}
}

func TestResolve_UnresolvableSoleRecord(t *testing.T) {
	s := newState(game.Top)
	r := newResolver(t, nil)

	err := r.Resolve(s, []RunnerMovement{mv(7, game.Second, game.Third, false)})
	var ue *UnresolvableMovementError
	if !errors.As(err, &ue) {
		t.Fatalf("err=%v want UnresolvableMovementError", err)
	}
	if ue.Movement.RunnerID != 7 || ue.Remaining != 1 {
		t.Fatalf("error=%+v", ue)
	}
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("unresolvable movement must be fatal")
	}
}

func TestResolve_DeadlockTerminates(t *testing.T) {
	s := newState(game.Top)
	place(s, 1, 2, game.Empty)
	r := newResolver(t, nil)

	// Two runners swapping bases can never be satisfied.
	moves := []RunnerMovement{
		mv(1, game.First, game.Second, false),
		mv(2, game.Second, game.First, false),
	}
	err := r.Resolve(s, moves)
	var ue *UnresolvableMovementError
	if !errors.As(err, &ue) {
		t.Fatalf("err=%v want UnresolvableMovementError", err)
	}
	if ue.Remaining != 2 {
		t.Fatalf("remaining=%d want=2", ue.Remaining)
	}
}

func TestResolve_RelocatesSkippedStep(t *testing.T) {
	s := newState(game.Top)
	place(s, 8, game.Empty, game.Empty)
	r := newResolver(t, nil)

	// The feed lost the 1B->2B step and reports 2B->score.
	if err := r.Resolve(s, []RunnerMovement{mv(8, game.Second, game.Score, false)}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.BaseState != 0 || s.AwayScore != 1 {
		t.Fatalf("state: %s", dumpState(s))
	}
}

func TestResolve_RelocatesSkippedStepWithBlockedRunner(t *testing.T) {
	s := newState(game.Top)
	place(s, 8, game.Empty, game.Empty)
	r := newResolver(t, nil)

	// The batter cannot pass runner 8 on first, and runner 8's record starts
	// from second. Neither applies until the relocation after a stalled pass.
	moves := []RunnerMovement{
		mv(8, game.Second, game.Score, false),
		mv(20, game.BaseNone, game.Second, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.First != game.Empty || s.Second != 20 || s.AwayScore != 1 {
		t.Fatalf("state: %s", dumpState(s))
	}
}

func TestResolve_OutsBypassDestination(t *testing.T) {
	s := newState(game.Top)
	place(s, 1, 2, game.Empty)
	s.Outs = 2
	r := newResolver(t, nil)

	moves := []RunnerMovement{
		mv(10, game.BaseNone, game.BaseNone, true),
		// Recorded after the third out; the destination is still held.
		mv(1, game.First, game.Second, false),
	}
	if err := r.Resolve(s, moves); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	checkInvariants(t, s)
	if s.Outs != 3 {
		t.Fatalf("outs=%d want=3", s.Outs)
	}
}

func TestResolve_OutsCapped(t *testing.T) {
	s := newState(game.Top)
	s.Outs = 3
	r := newResolver(t, nil)
	if err := r.Resolve(s, []RunnerMovement{mv(10, game.BaseNone, game.BaseNone, true)}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Outs != 3 {
		t.Fatalf("outs=%d want=3", s.Outs)
	}
}

func TestResolve_RegistersRunnerNames(t *testing.T) {
	s := newState(game.Top)
	r := newResolver(t, nil)
	m := mv(10, game.BaseNone, game.First, false)
	m.RunnerName = "J.D. Martinez"
	if err := r.Resolve(s, []RunnerMovement{m}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id, ok := s.RunnerNames["JDMartinez"]; !ok || id != 10 {
		t.Fatalf("names=%v", s.RunnerNames)
	}
}

func TestResolve_CorrectionPatch(t *testing.T) {
	const gid = "2017/07/18/tormlb-bosmlb-1"
	table, err := corrections.New(3, []corrections.Entry{{
		Key:    corrections.Key{GameID: gid, Inning: 7, Half: game.Bottom, Runner: 646240, Event: "Single"},
		Action: corrections.Patch,
		Fields: corrections.Fields{Start: ptr("2B"), End: ptr("score")},
	}})
	if err != nil {
		t.Fatalf("corrections.New: %v", err)
	}

	build := func() *game.GameState {
		s := newState(game.Bottom)
		s.Inning = 7
		place(s, game.Empty, 646240, game.Empty)
		return s
	}
	// As reported: a 1B->3B move for a runner who is on second.
	raw := mv(646240, game.First, game.Third, false)

	s := build()
	if err := newResolver(t, nil).Resolve(s, []RunnerMovement{raw}); err == nil {
		t.Fatalf("raw record should be unresolvable: %s", dumpState(s))
	}

	s = build()
	if err := newResolver(t, table).Resolve(s, []RunnerMovement{raw}); err != nil {
		t.Fatalf("Resolve with correction: %v", err)
	}
	checkInvariants(t, s)
	if s.Second != game.Empty || s.HomeScore != 1 {
		t.Fatalf("patched state: %s", dumpState(s))
	}

	// Other innings are untouched.
	s = build()
	s.Inning = 8
	if err := newResolver(t, table).Resolve(s, []RunnerMovement{raw}); err == nil {
		t.Fatalf("correction leaked into inning 8")
	}
}

func TestResolve_CorrectionSkip(t *testing.T) {
	table, err := corrections.New(1, []corrections.Entry{{
		Key:    corrections.Key{GameID: "2017/07/18/tormlb-bosmlb-1", Inning: 1, Half: game.Top, Runner: 7, Event: "Single"},
		Action: corrections.Skip,
	}})
	if err != nil {
		t.Fatalf("corrections.New: %v", err)
	}
	s := newState(game.Top)
	if err := newResolver(t, table).Resolve(s, []RunnerMovement{mv(7, game.Second, game.Third, false)}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.BaseState != 0 {
		t.Fatalf("skipped record was applied: %s", dumpState(s))
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   RunnerMovement
		want RunnerMovement
	}{
		{"4B start", RunnerMovement{Start: game.HomeQuirk, End: game.Score}, RunnerMovement{Start: game.Third, End: game.Score}},
		{"out clears end", RunnerMovement{Start: game.First, End: game.Second, IsOut: true}, RunnerMovement{Start: game.First, End: game.BaseNone, IsOut: true}},
		{"4B scoring end", RunnerMovement{Start: game.Third, End: game.HomeQuirk, IsScoringEvent: true}, RunnerMovement{Start: game.Third, End: game.Score, IsScoringEvent: true}},
		{"4B non scoring end", RunnerMovement{Start: game.Third, End: game.HomeQuirk}, RunnerMovement{Start: game.Third, End: game.HomeQuirk}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalize(tc.in); got != tc.want {
				t.Fatalf("normalize=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestMovementFromFeed(t *testing.T) {
	r := feed.Runner{
		Movement: feed.Movement{Start: ptr("1B"), End: ptr("3B"), IsOut: ptr(false)},
		Details: feed.RunnerDetails{
			Event:     "Double",
			Runner:    feed.Person{ID: 12, FullName: "Some Runner"},
			PlayIndex: 3,
		},
	}
	m, err := MovementFromFeed(r)
	if err != nil {
		t.Fatalf("MovementFromFeed: %v", err)
	}
	if m.Start != game.First || m.End != game.Third || m.RunnerID != 12 || m.PlayIndex != 3 || m.Event != "Double" {
		t.Fatalf("movement=%+v", m)
	}

	r.Movement.End = ptr("5B")
	if _, err := MovementFromFeed(r); !errors.Is(err, ErrMalformedFeed) {
		t.Fatalf("err=%v want ErrMalformedFeed", err)
	}
}
