// Package alias maps free-text player names, as they appear in substitution
// descriptions, to the ids of runners already seen on base.
//
// Names are compared by key: diacritics folded, periods and whitespace
// removed, then rewritten through a versioned alias table for initials the
// feed encodes inconsistently ("C. Cron" vs "C.J. Cron").
package alias

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed aliases.json
var defaultTableJSON []byte

// Table is a versioned set of key rewrites.
type Table struct {
	Version int               `json:"version"`
	Aliases map[string]string `json:"aliases"`
}

// DefaultTable returns the embedded alias table.
func DefaultTable() Table {
	t, err := ParseTable(defaultTableJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded alias table: %v", err))
	}
	return t
}

// ParseTable decodes a JSON alias table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse alias table: %w", err)
	}
	if t.Version <= 0 {
		return Table{}, fmt.Errorf("parse alias table: missing version")
	}
	// Keys are stored normalized so table authors can write either form.
	keys := make(map[string]string, len(t.Aliases))
	for from, to := range t.Aliases {
		keys[Normalize(from)] = Normalize(to)
	}
	t.Aliases = keys
	return t, nil
}

// LoadTable reads a JSON alias table from disk.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read alias table: %w", err)
	}
	return ParseTable(data)
}

// Normalize folds a display name to its comparison form: "José A. Ramírez"
// becomes "JoseARamirez".
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r == '.' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resolver resolves names against a per-half-inning name map.
type Resolver struct {
	table  Table
	logger *slog.Logger
}

func NewResolver(table Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if table.Aliases == nil {
		table.Aliases = map[string]string{}
	}
	return &Resolver{table: table, logger: logger}
}

// Version reports the alias table version in use.
func (r *Resolver) Version() int { return r.table.Version }

// Key returns the lookup key for a display name.
func (r *Resolver) Key(name string) string {
	k := Normalize(name)
	if canon, ok := r.table.Aliases[k]; ok {
		r.logger.Debug("alias rewrite", "from", k, "to", canon, "table_version", r.table.Version)
		return canon
	}
	return k
}

// Register records that the runner named displayName has id.
func (r *Resolver) Register(names map[string]int64, displayName string, id int64) {
	if displayName == "" {
		return
	}
	names[r.Key(displayName)] = id
}

// Lookup finds the id registered for name.
func (r *Resolver) Lookup(names map[string]int64, name string) (int64, bool) {
	id, ok := names[r.Key(name)]
	return id, ok
}

// OutgoingName extracts the replaced player's name from a substitution
// description such as "Pinch-runner Billy Hamilton replaces Joey Votto.".
func OutgoingName(description string) string {
	const marker = "replaces "
	if i := strings.LastIndex(description, marker); i >= 0 {
		description = description[i+len(marker):]
	}
	return strings.TrimSpace(description)
}

// IncomingName extracts the arriving runner's name from a pinch-runner or
// placed-runner description, for feeds whose player object has no name.
// It returns "" when the description does not name the runner.
func IncomingName(description string) string {
	d := strings.TrimSpace(description)
	const pinch = "pinch-runner "
	if i := strings.Index(strings.ToLower(d), pinch); i >= 0 {
		rest := d[i+len(pinch):]
		if j := strings.Index(rest, " replaces"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return ""
	}
	for _, marker := range []string{" placed on", " starts the inning"} {
		j := strings.Index(d, marker)
		if j < 0 {
			continue
		}
		name := d[:j]
		if k := strings.LastIndex(name, ": "); k >= 0 {
			name = name[k+2:]
		}
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, "runner") {
			return ""
		}
		return name
	}
	return ""
}
