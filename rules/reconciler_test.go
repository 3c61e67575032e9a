package rules

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

var updateGolden = flag.Bool("update", false, "rewrite golden files in testdata")

func occupant(id int64) string {
	if id == game.Empty {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}

func renderRecord(r PitchRecord) string {
	s, p := r.State, r.Pitch
	return fmt.Sprintf("ab=%d %s%d o=%d c=%d-%d bases=%03b[%s %s %s] score=%d-%d ab_score=%d-%d inn_score=%d-%d bat=%d/%s pit=%d/%s pc=%d ev=%q | %s %s %q",
		s.AtBatIndex, s.Half, s.Inning, s.Outs, s.Balls, s.Strikes,
		s.BaseState, occupant(s.First), occupant(s.Second), occupant(s.Third),
		s.AwayScore, s.HomeScore, s.AwayScoreAfterAB, s.HomeScoreAfterAB,
		s.AwayScoreAfterInning, s.HomeScoreAfterInning,
		s.Batter, s.BatSide, s.Pitcher, s.PitchHand, s.PitchCount, s.Event,
		p.Code, p.PitchType, p.Description)
}

func renderGame(final *game.GameState, sink *MemorySink) string {
	var b strings.Builder
	fmt.Fprintf(&b, "game=%s pk=%d date=%s dh=%d %s@%s ump=%d final=%d-%d outs=%d\n",
		final.GameID, final.GamePk, final.Date.Format("2006-01-02 15:04"), final.DoubleHeader,
		final.AwayTeam, final.HomeTeam, final.Umpire, final.AwayScore, final.HomeScore, final.Outs)
	for _, r := range sink.Records {
		b.WriteString(renderRecord(r))
		b.WriteByte('\n')
	}
	return b.String()
}

func compareGolden(t *testing.T, name, got string) {
	t.Helper()
	path := filepath.Join("testdata", name)
	if *updateGolden {
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("write golden: %v", err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden %s: %v", path, err)
	}
	if strings.TrimSpace(string(want)) == strings.TrimSpace(got) {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.TrimSpace(string(want)) + "\n"),
		B:        difflib.SplitLines(strings.TrimSpace(got) + "\n"),
		FromFile: "golden",
		ToFile:   "actual",
		Context:  2,
	})
	t.Fatalf("%s mismatch (run with -update to accept):\n%s", name, diff)
}

func loadFixture(t *testing.T, name string) *feed.Game {
	t.Helper()
	g, err := feed.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("ReadFile %s: %v", name, err)
	}
	return g
}

func TestReconcile_Golden(t *testing.T) {
	g := loadFixture(t, "one_inning.json")
	r := NewReconciler(WithLogger(quietLogger()))
	sink := &MemorySink{}

	final, err := r.Reconcile(g, sink)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	compareGolden(t, "one_inning.golden", renderGame(final, sink))

	last := g.LiveData.Plays.AllPlays[len(g.LiveData.Plays.AllPlays)-1]
	if final.AwayScore != last.Result.AwayScore || final.HomeScore != last.Result.HomeScore {
		t.Fatalf("final=%d-%d feed=%d-%d", final.AwayScore, final.HomeScore, last.Result.AwayScore, last.Result.HomeScore)
	}
	for i, rec := range sink.Records {
		if rec.State.Outs > 3 {
			t.Fatalf("record %d: outs=%d", i, rec.State.Outs)
		}
	}
	if sink.Finalized {
		t.Fatalf("Reconcile must leave finalization to the caller")
	}
}

func TestReconcile_UniqueEvents(t *testing.T) {
	r := NewReconciler(WithLogger(quietLogger()))
	if _, err := r.Reconcile(loadFixture(t, "one_inning.json"), &MemorySink{}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := []string{"Single", "Home Run", "Walk", "Grounded Into DP", "Flyout",
		"Hit By Pitch", "Double", "Sac Fly", "Groundout", "Lineout"}
	got := r.UniqueEvents()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want=%v", got, want)
	}
}

func TestReconcile_FailureIsolated(t *testing.T) {
	r := NewReconciler(WithLogger(quietLogger()))

	bad := loadFixture(t, "one_inning.json")
	bad.LiveData.Plays.AllPlays[1].Result.AwayScore = 3
	if _, err := r.Reconcile(bad, &MemorySink{}); err == nil {
		t.Fatalf("expected score mismatch")
	} else {
		var ge *GameError
		var se *ScoreMismatchError
		if !errors.As(err, &ge) || !errors.As(err, &se) {
			t.Fatalf("err=%v want GameError wrapping ScoreMismatchError", err)
		}
		if ge.AtBatIndex != 1 || ge.GamePk != 565796 || se.Away != 2 || se.WantAway != 3 {
			t.Fatalf("game error=%+v score error=%+v", ge, se)
		}
	}

	sink := &MemorySink{}
	if _, err := r.Reconcile(loadFixture(t, "one_inning.json"), sink); err != nil {
		t.Fatalf("clean game after failure: %v", err)
	}
	if len(sink.Records) != 17 {
		t.Fatalf("records=%d want=17", len(sink.Records))
	}
}

func TestReconcile_UnknownPlayType(t *testing.T) {
	g := loadFixture(t, "one_inning.json")
	g.LiveData.Plays.AllPlays[2].Result.Type = "gameAdvisory"

	_, err := NewReconciler(WithLogger(quietLogger())).Reconcile(g, &MemorySink{})
	var ue *UnknownPlayTypeError
	if !errors.As(err, &ue) || ue.Scope != "play" || ue.Type != "gameAdvisory" {
		t.Fatalf("err=%v want UnknownPlayTypeError", err)
	}
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("unknown play type must be fatal")
	}
}

func TestInningScores(t *testing.T) {
	ls := feed.Linescore{Innings: []feed.Inning{
		{Num: 1, Away: feed.InningRuns{Runs: ptr(1)}, Home: &feed.InningRuns{Runs: ptr(2)}},
		{Num: 2, Away: feed.InningRuns{Runs: ptr(3)}},
	}}
	got := InningScores(ls)
	want := map[InningKey]InningScore{
		{Half: game.Top, Inning: 1}:    {Away: 1, Home: 0},
		{Half: game.Bottom, Inning: 1}: {Away: 1, Home: 2},
		{Half: game.Top, Inning: 2}:    {Away: 4, Home: 2},
		{Half: game.Bottom, Inning: 2}: {Away: 4, Home: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d want=%d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%v=%+v want=%+v", k, got[k], v)
		}
	}
}

func TestGameDate(t *testing.T) {
	cases := []struct {
		name string
		in   feed.Datetime
		want string
	}{
		{"evening", feed.Datetime{OfficialDate: "2019-06-11", Time: "7:07", AmPm: "PM"}, "2019-06-11 19:07"},
		{"noon", feed.Datetime{OfficialDate: "2019-06-11", Time: "12:05", AmPm: "PM"}, "2019-06-11 12:05"},
		{"after midnight", feed.Datetime{OfficialDate: "2019-06-11", Time: "12:30", AmPm: "AM"}, "2019-06-11 00:30"},
		{"datetime fallback", feed.Datetime{DateTime: "2017-07-18T23:10:00Z", Time: "7:10", AmPm: "PM"}, "2017-07-18 19:10"},
		{"no time", feed.Datetime{OfficialDate: "2019-06-11"}, "2019-06-11 00:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := gameDate(tc.in)
			if err != nil {
				t.Fatalf("gameDate: %v", err)
			}
			if got.Format("2006-01-02 15:04") != tc.want {
				t.Fatalf("date=%s want=%s", got.Format(time.DateTime), tc.want)
			}
		})
	}

	if _, err := gameDate(feed.Datetime{}); !errors.Is(err, ErrMalformedFeed) {
		t.Fatalf("err=%v want ErrMalformedFeed", err)
	}
}

func TestDoubleHeader(t *testing.T) {
	if got := doubleHeader("2019/06/11/bosmlb-tormlb-2"); got != 2 {
		t.Fatalf("dh=%d want=2", got)
	}
	if got := doubleHeader("exhibition"); got != -1 {
		t.Fatalf("dh=%d want=-1", got)
	}
}

func TestInitState_UnknownDoubleHeader(t *testing.T) {
	g := &feed.Game{GamePk: 1}
	g.GameData.Game.ID = "exhibition"
	g.GameData.Datetime.OfficialDate = "2019-06-11"

	s, err := NewReconciler(WithLogger(quietLogger())).initState(g)
	if err != nil {
		t.Fatalf("initState: %v", err)
	}
	if s.DoubleHeader != -1 {
		t.Fatalf("dh=%d want=-1", s.DoubleHeader)
	}
}
