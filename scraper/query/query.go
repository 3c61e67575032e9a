package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// GameSummary is one game's footprint in the pitch dataset.
type GameSummary struct {
	GamePk    int64
	GameID    string
	GameDate  string
	AwayTeam  string
	HomeTeam  string
	Pitches   int64
	AtBats    int64
	FinalAway int64 // away score after the last recorded at-bat
	FinalHome int64
	File      string
}

// DB is an in-memory DuckDB connection exposing every pitch parquet file
// under the roots as the view "pitches".
type DB struct {
	db    *sql.DB
	roots []string
}

// Open creates the connection and the pitches view.
func Open(roots []string) (*DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	if len(globs) == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("no parquet roots given")
	}

	// Files still being written live under tmp/ and are excluded.
	sqlText := `CREATE OR REPLACE VIEW pitches AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pitches view: %w", err)
	}
	return &DB{db: db, roots: roots}, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Close closes the connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Totals returns the number of games and pitches in the dataset.
func (d *DB) Totals(ctx context.Context) (games, pitches int64, err error) {
	err = d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT game_pk), COUNT(*) FROM pitches`).Scan(&games, &pitches)
	return games, pitches, err
}

// Summary returns one row per game, most recent first.
func (d *DB) Summary(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			game_pk,
			MIN(game_id)::VARCHAR,
			MIN(game_date)::VARCHAR,
			MIN(away_team)::VARCHAR,
			MIN(home_team)::VARCHAR,
			COUNT(*),
			COUNT(DISTINCT at_bat_index),
			arg_max(away_score_after_ab, at_bat_index)::BIGINT,
			arg_max(home_score_after_ab, at_bat_index)::BIGINT,
			MIN(filename)::VARCHAR
		FROM pitches
		GROUP BY game_pk
		ORDER BY MIN(game_time_ms) DESC, game_pk DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GamePk, &g.GameID, &g.GameDate, &g.AwayTeam, &g.HomeTeam,
			&g.Pitches, &g.AtBats, &g.FinalAway, &g.FinalHome, &g.File); err != nil {
			return nil, err
		}
		g.File = relativeToRoots(g.File, d.roots)
		out = append(out, g)
	}
	return out, rows.Err()
}

// PitchTypes returns pitch counts by pitch type for one game.
func (d *DB) PitchTypes(ctx context.Context, gamePk int64) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT pitch_type, COUNT(*) FROM pitches WHERE game_pk = ? GROUP BY pitch_type`, gamePk)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			pt string
			n  int64
		)
		if err := rows.Scan(&pt, &n); err != nil {
			return nil, err
		}
		out[pt] = n
	}
	return out, rows.Err()
}

func relativeToRoots(filename string, roots []string) string {
	best := filename
	for _, root := range roots {
		rel, err := filepath.Rel(strings.TrimSpace(root), filename)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(rel) < len(best) {
			best = filepath.ToSlash(rel)
		}
	}
	return best
}
