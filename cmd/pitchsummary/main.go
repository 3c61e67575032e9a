// Command pitchsummary prints per-game totals of a pitchdf dataset, and
// optionally the failures recorded in the feed cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/brensch/pitchdf/scraper/db"
	"github.com/brensch/pitchdf/scraper/logging"
	"github.com/brensch/pitchdf/scraper/query"
)

func main() {
	roots := flag.String("roots", "data", "Comma-separated directories of batch .parquet files")
	limit := flag.Int("limit", 50, "Number of games to list")
	gamePk := flag.Int64("game", 0, "Also print the pitch type mix of this gamePk")
	cachePath := flag.String("cache", "", "Feed cache to report reconciliation failures from")
	logFormat := flag.String("log-format", logging.FormatText, "Log format: pretty, json or text")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, "info")
	if err != nil {
		fmt.Fprintln(os.Stderr, "pitchsummary:", err)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Stdout, strings.Split(*roots, ","), *limit, *gamePk, *cachePath); err != nil {
		logger.Error("pitchsummary failed", "roots", *roots, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, roots []string, limit int, gamePk int64, cachePath string) error {
	qdb, err := query.Open(roots)
	if err != nil {
		return err
	}
	defer qdb.Close()

	games, pitches, err := qdb.Totals(ctx)
	if err != nil {
		return fmt.Errorf("totals: %w", err)
	}
	fmt.Fprintf(out, "%d games, %d pitches\n\n", games, pitches)

	summary, err := qdb.Summary(ctx, limit)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME_PK\tGAME\tDATE\tMATCHUP\tPITCHES\tAT_BATS\tFINAL\tFILE")
	for _, g := range summary {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s@%s\t%d\t%d\t%d-%d\t%s\n",
			g.GamePk, g.GameID, g.GameDate, g.AwayTeam, g.HomeTeam, g.Pitches, g.AtBats, g.FinalAway, g.FinalHome, g.File)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if gamePk != 0 {
		types, err := qdb.PitchTypes(ctx, gamePk)
		if err != nil {
			return fmt.Errorf("pitch types: %w", err)
		}
		keys := make([]string, 0, len(types))
		for k := range types {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return types[keys[i]] > types[keys[j]] || (types[keys[i]] == types[keys[j]] && keys[i] < keys[j]) })
		fmt.Fprintf(out, "\nPitch types for %d:\n", gamePk)
		for _, k := range keys {
			fmt.Fprintf(out, "  %-4s %d\n", k, types[k])
		}
	}

	if cachePath == "" {
		return nil
	}
	cache, err := db.New(cachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	total, processed, failed, err := cache.Stats()
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}
	fmt.Fprintf(out, "\nCache: %d feeds, %d processed, %d failed\n", total, processed, failed)
	failures, err := cache.FailedGames(limit)
	if err != nil {
		return fmt.Errorf("cache failures: %w", err)
	}
	for _, g := range failures {
		fmt.Fprintf(out, "  %d %s: %s\n", g.Pk, g.GameID, g.Error)
	}
	return nil
}
