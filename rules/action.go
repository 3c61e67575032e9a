package rules

import (
	"log/slog"
	"strings"

	"github.com/brensch/pitchdf/alias"
	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

// Action labels with a state effect.
const (
	ActionPitchingSubstitution  = "Pitching Substitution"
	ActionUmpireSubstitution    = "Umpire Substitution"
	ActionPitcherSwitch         = "Pitcher Switch"
	ActionOffensiveSubstitution = "Offensive Substitution"
	ActionRunnerPlaced          = "Runner Placed On Base"
)

// ignoredActions have no effect on the state. Stolen bases, pickoffs and the
// like are reflected through runner movements instead.
var ignoredActions = map[string]bool{
	"Passed Ball":                  true,
	"Wild Pitch":                   true,
	"Balk":                         true,
	"Error":                        true,
	"Other Advance":                true,
	"Runner Out":                   true,
	"Defensive Indiff":             true,
	"Stolen Base 2B":               true,
	"Stolen Base 3B":               true,
	"Stolen Base Home":             true,
	"Caught Stealing 2B":           true,
	"Caught Stealing 3B":           true,
	"Caught Stealing Home":         true,
	"Pickoff 1B":                   true,
	"Pickoff 2B":                   true,
	"Pickoff 3B":                   true,
	"Pickoff Error 1B":             true,
	"Pickoff Error 2B":             true,
	"Pickoff Error 3B":             true,
	"Pickoff Caught Stealing 2B":   true,
	"Pickoff Caught Stealing 3B":   true,
	"Pickoff Caught Stealing Home": true,
	"Defensive Switch":             true,
	"Defensive Sub":                true,
	"Game Advisory":                true,
	"Injury":                       true,
	"Ejection":                     true,
	"Pitch Challenge":              true,
	"Mound Visit":                  true,
	"Batter Timeout":               true,
}

type actionFunc func(p *ActionProcessor, s *game.GameState, ev feed.PlayEvent) error

var actionTable = map[string]actionFunc{
	ActionPitchingSubstitution:  (*ActionProcessor).pitchingSubstitution,
	ActionUmpireSubstitution:    (*ActionProcessor).umpireSubstitution,
	ActionPitcherSwitch:         (*ActionProcessor).pitcherSwitch,
	ActionOffensiveSubstitution: (*ActionProcessor).offensiveSubstitution,
	ActionRunnerPlaced:          (*ActionProcessor).runnerPlaced,
}

// ActionProcessor applies non-pitch sub-events.
type ActionProcessor struct {
	names  *alias.Resolver
	logger *slog.Logger
}

func NewActionProcessor(names *alias.Resolver, logger *slog.Logger) *ActionProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if names == nil {
		names = alias.NewResolver(alias.DefaultTable(), logger)
	}
	return &ActionProcessor{names: names, logger: logger}
}

// Process dispatches on the action label.
func (p *ActionProcessor) Process(s *game.GameState, ev feed.PlayEvent) error {
	label := ev.Details.Event
	if fn, ok := actionTable[label]; ok {
		return fn(p, s, ev)
	}
	if ignoredActions[label] {
		return nil
	}
	return &UnknownActionError{Action: label}
}

func (p *ActionProcessor) pitchingSubstitution(s *game.GameState, ev feed.PlayEvent) error {
	if ev.Player == nil {
		return malformed("pitching substitution without a player")
	}
	s.Pitcher = ev.Player.ID
	if _, ok := s.PitchCounts[s.Pitcher]; !ok {
		s.PitchCounts[s.Pitcher] = 0
	}
	s.CurPitchCount = s.PitchCounts[s.Pitcher]
	return nil
}

func (p *ActionProcessor) umpireSubstitution(s *game.GameState, ev feed.PlayEvent) error {
	des := ev.Details.Description
	if !strings.Contains(des, "HP") && !strings.Contains(strings.ToLower(des), "home plate") {
		return nil
	}
	if ev.Umpire == nil {
		return malformed("home plate umpire substitution without an umpire")
	}
	s.Umpire = ev.Umpire.ID
	return nil
}

func (p *ActionProcessor) pitcherSwitch(s *game.GameState, ev feed.PlayEvent) error {
	des := ev.Details.Description
	if strings.Contains(des, "left-handed") {
		s.PitchHand = "L"
	}
	if strings.Contains(des, "right-handed") {
		s.PitchHand = "R"
	}
	return nil
}

// offensiveSubstitution handles pinch-runners; pinch-hitters only matter
// through the next at-bat's matchup.
func (p *ActionProcessor) offensiveSubstitution(s *game.GameState, ev feed.PlayEvent) error {
	des := ev.Details.Description
	if !strings.Contains(strings.ToLower(des), "pinch-runner") {
		return nil
	}
	if ev.Player == nil {
		return malformed("pinch-runner substitution without a player")
	}

	outgoing := alias.OutgoingName(des)
	id, ok := p.names.Lookup(s.RunnerNames, outgoing)
	base := s.BaseOf(id)
	if !ok || base == game.BaseNone {
		return &PinchRunnerLookupError{Name: outgoing, Key: p.names.Key(outgoing)}
	}

	s.SetOccupant(base, ev.Player.ID)
	s.RecomputeBaseState()
	p.names.Register(s.RunnerNames, incomingName(ev), ev.Player.ID)
	p.logger.Debug("pinch-runner", "out", id, "in", ev.Player.ID, "base", base.String())
	return nil
}

// runnerPlaced puts the extra-innings automatic runner on second.
func (p *ActionProcessor) runnerPlaced(s *game.GameState, ev feed.PlayEvent) error {
	if ev.Player == nil {
		return malformed("runner placed on base without a player")
	}
	if b := s.BaseOf(ev.Player.ID); b != game.BaseNone {
		s.SetOccupant(b, game.Empty)
	}
	s.SetOccupant(game.Second, ev.Player.ID)
	s.RecomputeBaseState()
	p.names.Register(s.RunnerNames, incomingName(ev), ev.Player.ID)
	return nil
}

// incomingName prefers the player's full name; live feeds usually carry only
// the id, so the description is the fallback.
func incomingName(ev feed.PlayEvent) string {
	if ev.Player != nil && ev.Player.FullName != "" {
		return ev.Player.FullName
	}
	return alias.IncomingName(ev.Details.Description)
}
