// Package corrections holds the table of known-bad runner records in the
// play-by-play feed.
//
// Each entry is keyed by the record's identifying context (game, inning,
// half, runner, event label) and either skips the record or patches some of
// its fields. The table carries no resolution logic; it is data, loaded from
// JSON and versioned so that feed-defect knowledge can be audited on its own.
package corrections

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/brensch/pitchdf/game"
)

//go:embed default.json
var defaultTableJSON []byte

// Action is what to do with a matched record.
type Action string

const (
	Skip  Action = "skip"
	Patch Action = "patch"
)

// Key identifies one runner record.
type Key struct {
	GameID string    `json:"game"`
	Inning int       `json:"inning"`
	Half   game.Half `json:"half"`
	Runner int64     `json:"runner"`
	Event  string    `json:"event"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s/%d/%s", k.GameID, k.Inning, k.Half, k.Runner, k.Event)
}

// Fields lists the patchable record fields. Nil means leave unchanged; an
// empty base code means "none".
type Fields struct {
	Start          *string `json:"start,omitempty"`
	End            *string `json:"end,omitempty"`
	IsOut          *bool   `json:"isOut,omitempty"`
	IsScoringEvent *bool   `json:"isScoringEvent,omitempty"`
}

// Entry is one correction.
type Entry struct {
	Key
	Action Action `json:"action"`
	Fields Fields `json:"patch"`
	Note   string `json:"note,omitempty"`
}

type file struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Table is an immutable lookup of corrections.
type Table struct {
	version int
	entries map[Key]Entry
}

// Empty returns a table with no corrections.
func Empty() *Table {
	return &Table{entries: map[Key]Entry{}}
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTableJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded corrections table: %v", err))
	}
	return t
}

// Load reads a correction table from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corrections: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON correction table.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse corrections: %w", err)
	}
	if f.Version <= 0 {
		return nil, fmt.Errorf("parse corrections: missing version")
	}
	return New(f.Version, f.Entries)
}

// New builds a table from entries, rejecting duplicates and malformed patches.
func New(version int, entries []Entry) (*Table, error) {
	t := &Table{version: version, entries: make(map[Key]Entry, len(entries))}
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("corrections entry %d (%s): %w", i, e.Key, err)
		}
		if _, dup := t.entries[e.Key]; dup {
			return nil, fmt.Errorf("corrections entry %d: duplicate key %s", i, e.Key)
		}
		t.entries[e.Key] = e
	}
	return t, nil
}

func (e Entry) validate() error {
	if e.GameID == "" {
		return fmt.Errorf("missing game")
	}
	if e.Half != game.Top && e.Half != game.Bottom {
		return fmt.Errorf("half must be top or bottom, got %q", e.Half)
	}
	switch e.Action {
	case Skip:
		return nil
	case Patch:
		for _, code := range []*string{e.Fields.Start, e.Fields.End} {
			if code == nil {
				continue
			}
			if _, err := game.ParseBase(*code); err != nil {
				return err
			}
		}
		if e.Fields == (Fields{}) {
			return fmt.Errorf("patch without fields")
		}
		return nil
	}
	return fmt.Errorf("unknown action %q", e.Action)
}

// Version reports the table version.
func (t *Table) Version() int {
	if t == nil {
		return 0
	}
	return t.version
}

// Len reports the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the correction for k, if any.
func (t *Table) Lookup(k Key) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[k]
	return e, ok
}
