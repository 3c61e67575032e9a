package rules

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/pitchdf/alias"
	"github.com/brensch/pitchdf/corrections"
	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

const playTypeAtBat = "atBat"

// Reconciler turns live-feed documents into pitch records. It processes one
// game at a time and is not safe for concurrent use.
type Reconciler struct {
	logger      *slog.Logger
	corrections *corrections.Table
	aliases     alias.Table

	// events are the distinct at-bat event labels seen across all games.
	events []string
	seen   map[string]bool
}

type Option func(*Reconciler)

func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCorrections replaces the embedded correction table.
func WithCorrections(t *corrections.Table) Option {
	return func(r *Reconciler) { r.corrections = t }
}

// WithAliases replaces the embedded alias table.
func WithAliases(t alias.Table) Option {
	return func(r *Reconciler) { r.aliases = t }
}

func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:      slog.Default(),
		corrections: corrections.Default(),
		aliases:     alias.DefaultTable(),
		seen:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UniqueEvents returns the distinct event labels seen so far, in order of
// first appearance.
func (r *Reconciler) UniqueEvents() []string {
	return append([]string(nil), r.events...)
}

// Reconcile replays every at-bat of g, appending one record per pitch to
// sink. It does not finalize the sink. Any error is wrapped in a *GameError;
// records already appended for the game should then be discarded.
func (r *Reconciler) Reconcile(g *feed.Game, sink Sink) (*game.GameState, error) {
	s, err := r.initState(g)
	if err != nil {
		return nil, &GameError{GameID: g.GameData.Game.ID, GamePk: g.GamePk, AtBatIndex: -1, Err: err}
	}
	logger := r.logger.With("game", s.GameID, "pk", s.GamePk)
	logger.Debug("reconciling game", "date", s.Date.Format("2006-01-02 15:04"))

	names := alias.NewResolver(r.aliases, logger)
	seq := NewAtBatSequencer(
		NewPitchProcessor(sink),
		NewActionProcessor(names, logger),
		NewRunnerResolver(r.corrections, names, logger),
		InningScores(g.LiveData.Linescore),
		logger,
	)

	defer r.noteEvents(s)
	for i := range g.LiveData.Plays.AllPlays {
		play := &g.LiveData.Plays.AllPlays[i]
		if play.Result.Type != playTypeAtBat {
			return s, r.wrap(s, play.About.AtBatIndex, &UnknownPlayTypeError{Scope: "play", Type: play.Result.Type})
		}
		if err := seq.Process(s, *play); err != nil {
			return s, r.wrap(s, play.About.AtBatIndex, err)
		}
	}
	return s, nil
}

func (r *Reconciler) wrap(s *game.GameState, atBat int, err error) error {
	return &GameError{GameID: s.GameID, GamePk: s.GamePk, AtBatIndex: atBat, Err: err}
}

func (r *Reconciler) noteEvents(s *game.GameState) {
	for _, e := range s.UniqueEvents {
		if !r.seen[e] {
			r.seen[e] = true
			r.events = append(r.events, e)
		}
	}
}

func (r *Reconciler) initState(g *feed.Game) (*game.GameState, error) {
	gd := g.GameData
	s := game.New()
	s.GameID = gd.Game.ID
	s.GamePk = g.GamePk
	s.HomeTeam = gd.Teams.Home.TeamCode
	s.AwayTeam = gd.Teams.Away.TeamCode

	date, err := gameDate(gd.Datetime)
	if err != nil {
		return nil, err
	}
	s.Date = date

	s.DoubleHeader = doubleHeader(gd.Game.ID)
	if s.DoubleHeader < 0 {
		r.logger.Warn("cannot parse doubleheader index", "game", gd.Game.ID)
	}

	for _, o := range g.LiveData.Boxscore.Officials {
		if strings.Contains(strings.ToLower(o.OfficialType), "home") {
			s.Umpire = o.Official.ID
		}
	}
	return s, nil
}

// gameDate combines the game's calendar date with its local "h:mm" start
// time.
func gameDate(dt feed.Datetime) (time.Time, error) {
	day := dt.OfficialDate
	if day == "" {
		day, _, _ = strings.Cut(dt.DateTime, "T")
	}
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return time.Time{}, malformed("game date %q", day)
	}
	if dt.Time == "" {
		return d, nil
	}

	ampm := strings.ToUpper(dt.AmPm)
	if ampm == "" {
		ampm = "PM"
	}
	t, err := time.Parse("3:04 PM", dt.Time+" "+ampm)
	if err != nil {
		return time.Time{}, malformed("game time %q %q", dt.Time, dt.AmPm)
	}
	return d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// doubleHeader reads the game number suffix of an id like
// "2017/07/18/tormlb-bosmlb-1". It returns -1 when there is none.
func doubleHeader(id string) int {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return -1
	}
	return n
}
