package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/pitchdf/game"
)

// ErrFatal matches every inconsistency that aborts reconciliation of a game.
var ErrFatal = errors.New("fatal feed inconsistency")

// ErrMalformedFeed marks records that cannot be interpreted at all (unknown
// base codes, play indexes outside the at-bat). It is also fatal.
var ErrMalformedFeed = errors.New("malformed feed record")

// CountMismatchError is raised when the reconstructed count disagrees with
// the count the feed declares for a pitch.
type CountMismatchError struct {
	Description            string
	Balls, Strikes         int
	WantBalls, WantStrikes int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("count mismatch after %q: got %d-%d, feed says %d-%d",
		e.Description, e.Balls, e.Strikes, e.WantBalls, e.WantStrikes)
}

func (e *CountMismatchError) Is(target error) bool { return target == ErrFatal }

// ScoreMismatchError is raised when the reconstructed score disagrees with
// the feed's post-at-bat score.
type ScoreMismatchError struct {
	Away, Home         int
	WantAway, WantHome int
}

func (e *ScoreMismatchError) Error() string {
	return fmt.Sprintf("score mismatch: got away=%d home=%d, feed says away=%d home=%d",
		e.Away, e.Home, e.WantAway, e.WantHome)
}

func (e *ScoreMismatchError) Is(target error) bool { return target == ErrFatal }

// UnresolvableMovementError is raised when the runner worklist cannot make
// progress.
type UnresolvableMovementError struct {
	Movement             RunnerMovement
	Remaining            int
	Inning               int
	Half                 game.Half
	Outs                 int
	First, Second, Third int64
}

func (e *UnresolvableMovementError) Error() string {
	return fmt.Sprintf("unresolvable runner movement %d %s->%s (out=%v) with %d pending; %s %d, %d out, bases 1B=%d 2B=%d 3B=%d",
		e.Movement.RunnerID, e.Movement.Start, e.Movement.End, e.Movement.IsOut, e.Remaining,
		e.Half, e.Inning, e.Outs, e.First, e.Second, e.Third)
}

func (e *UnresolvableMovementError) Is(target error) bool { return target == ErrFatal }

// PinchRunnerLookupError is raised when a pinch-runner substitution names a
// runner who is not on base.
type PinchRunnerLookupError struct {
	Name string
	Key  string
}

func (e *PinchRunnerLookupError) Error() string {
	return fmt.Sprintf("pinch-runner replacing %q (key %q), who does not appear to be on the bases", e.Name, e.Key)
}

func (e *PinchRunnerLookupError) Is(target error) bool { return target == ErrFatal }

// UnknownActionError is raised for an action label outside the dispatch table.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string { return "unknown action: " + e.Action }

func (e *UnknownActionError) Is(target error) bool { return target == ErrFatal }

// UnknownPlayTypeError is raised for an unrecognized play type, or an
// unrecognized sub-event type within an at-bat.
type UnknownPlayTypeError struct {
	Scope string // "play" or "event"
	Type  string
}

func (e *UnknownPlayTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q", e.Scope, e.Type)
}

func (e *UnknownPlayTypeError) Is(target error) bool { return target == ErrFatal }

// FaultyAtBatError is raised for an at-bat that declares no event but has
// sub-events.
type FaultyAtBatError struct {
	AtBatIndex int
	StartTime  string
}

func (e *FaultyAtBatError) Error() string {
	return fmt.Sprintf("faulty at-bat %d (start %s): sub-events without a result event", e.AtBatIndex, e.StartTime)
}

func (e *FaultyAtBatError) Is(target error) bool { return target == ErrFatal }

// GameError carries the game and at-bat in which a fatal error occurred.
type GameError struct {
	GameID     string
	GamePk     int64
	AtBatIndex int
	Err        error
}

func (e *GameError) Error() string {
	return fmt.Sprintf("game %s (pk %d) at-bat %d: %v", e.GameID, e.GamePk, e.AtBatIndex, e.Err)
}

func (e *GameError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFeed, fmt.Sprintf(format, args...))
}
