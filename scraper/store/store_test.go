package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/pitchdf/game"
	"github.com/brensch/pitchdf/rules"
)

func snapshot(ab int) game.Snapshot {
	return game.Snapshot{
		GameID:     "2019/06/11/bosmlb-tormlb-1",
		GamePk:     565796,
		Date:       time.Date(2019, 6, 11, 19, 7, 0, 0, time.UTC),
		HomeTeam:   "tor",
		AwayTeam:   "bos",
		Inning:     1,
		Half:       game.Top,
		First:      game.Empty,
		Second:     646240,
		Third:      game.Empty,
		BaseState:  0b010,
		Batter:     10,
		Pitcher:    20,
		AtBatIndex: ab,
	}
}

func pitch(code string) rules.Pitch {
	return rules.Pitch{
		Description: "Ball",
		Code:        code,
		PitchType:   "FF",
		StartSpeed:  95.1,
		SpinRate:    rules.Unknown,
		Zone:        rules.UnknownCode,
		HitHardness: rules.UnknownLabel,
	}
}

func TestBatchWriter_AppendFinalize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "run-1")
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}

	sink := &rules.MemorySink{}
	sink.Append(snapshot(0), pitch("B"))
	sink.Append(snapshot(1), pitch("C"))
	if err := sink.CopyTo(w); err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	w.NoteGameWritten()
	if w.BufferedRows() != 2 || w.BufferedGames() != 1 {
		t.Fatalf("rows=%d games=%d", w.BufferedRows(), w.BufferedGames())
	}

	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if w.FinalPath() != w.OutPath() {
		t.Fatalf("final=%q out=%q", w.FinalPath(), w.OutPath())
	}
	if _, err := os.Stat(w.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("tmp file still present: %v", err)
	}
	if err := w.Append(snapshot(2), pitch("X")); err == nil {
		t.Fatalf("Append after Finalize should fail")
	}

	rows, err := ReadPitchRows(w.FinalPath())
	if err != nil {
		t.Fatalf("ReadPitchRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}
	r := rows[1]
	if r.AtBatIndex != 1 || r.Code != "C" || r.Second != 646240 || r.BaseState != 2 || r.Half != "top" {
		t.Fatalf("row=%+v", r)
	}
	if r.First != -1 || r.Third != -1 {
		t.Fatalf("empty bases stored as 1B=%d 3B=%d want=-1", r.First, r.Third)
	}
	if r.GameDate != "2019-06-11" || r.SpinRate != rules.Unknown || r.Zone != -1 || r.HitHardness != "NONE" {
		t.Fatalf("row=%+v", r)
	}
}

func TestBatchWriter_EmptyBatchRemoved(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "run-2")
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if w.FinalPath() != "" {
		t.Fatalf("empty batch published %q", w.FinalPath())
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if len(matches) != 0 {
		t.Fatalf("unexpected files %v", matches)
	}
	// Finalize twice is a no-op.
	if err := w.Finalize(); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
}

func TestWriteBatchParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	records := []rules.PitchRecord{
		{State: snapshot(4), Pitch: pitch("X")},
	}
	path, err := WriteBatchParquetAtomic(dir, "debug_565796", "run-3", RowsFromRecords(records))
	if err != nil {
		t.Fatalf("WriteBatchParquetAtomic: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path=%s not in %s", path, dir)
	}
	rows, err := ReadPitchRows(path)
	if err != nil || len(rows) != 1 || rows[0].AtBatIndex != 4 {
		t.Fatalf("rows=%+v err=%v", rows, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "tmp", "*"))
	if len(leftovers) != 0 {
		t.Fatalf("tmp leftovers %v", leftovers)
	}
}

func TestWrittenLog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "written.log")
	l, err := OpenWrittenLog(path)
	if err != nil {
		t.Fatalf("OpenWrittenLog: %v", err)
	}
	err = l.AddMany([]WrittenGame{
		{Pk: 565796, ID: "2019/06/11/bosmlb-tormlb-1"},
		{Pk: 565796, ID: "2019/06/11/bosmlb-tormlb-1"},
		{Pk: 0, ID: "ignored"},
		{Pk: 565797, ID: "2019/06/12/bosmlb-tormlb-1"},
	})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	l.Close()

	// Simulate a crash mid-line.
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("56579x")
	f.Close()

	l, err = OpenWrittenLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if !l.Has(565796) || !l.Has(565797) || l.Count() != 2 {
		t.Fatalf("has: %v", l.SnapshotPkMap())
	}
	if err := l.AddMany(nil); err != nil {
		t.Fatalf("AddMany(nil): %v", err)
	}
}

func TestParseLogLine(t *testing.T) {
	cases := []struct {
		line string
		pk   int64
		id   string
		ok   bool
	}{
		{"565796\t2019/06/11/bosmlb-tormlb-1", 565796, "2019/06/11/bosmlb-tormlb-1", true},
		{"565796", 565796, "", true},
		{"", 0, "", false},
		{"2019/06/11/bosmlb-tormlb-1", 0, "", false},
		{"-4\tx", 0, "", false},
	}
	for _, tc := range cases {
		pk, id, ok := parseLogLine(tc.line)
		if pk != tc.pk || id != tc.id || ok != tc.ok {
			t.Fatalf("%q: got (%d,%q,%v) want (%d,%q,%v)", tc.line, pk, id, ok, tc.pk, tc.id, tc.ok)
		}
	}
}

func TestBatchWriter_Abort(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "run-4")
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	if err := w.Append(snapshot(0), pitch("B")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(w.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("tmp file still present: %v", err)
	}
	if err := w.Finalize(); err != nil || w.FinalPath() != "" {
		t.Fatalf("Finalize after Abort: path=%q err=%v", w.FinalPath(), err)
	}
}
