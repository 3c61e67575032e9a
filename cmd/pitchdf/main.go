// Command pitchdf reconciles MLB live-feed documents into a pitch-by-pitch
// parquet dataset. Feeds come from local files (-input) or are discovered and
// downloaded for a date range (-start/-end).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/brensch/pitchdf/alias"
	"github.com/brensch/pitchdf/corrections"
	"github.com/brensch/pitchdf/rules"
	"github.com/brensch/pitchdf/scraper/db"
	"github.com/brensch/pitchdf/scraper/downloader"
	"github.com/brensch/pitchdf/scraper/logging"
	"github.com/brensch/pitchdf/scraper/store"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "pitchdf:", err)
		os.Exit(2)
	}
	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pitchdf:", err)
		os.Exit(1)
	}
}

func run(cfg Config, stdout io.Writer) error {
	logOut := io.Writer(os.Stderr)
	if cfg.TUI {
		// The progress view owns the terminal; logs go next to the written log.
		path := filepath.Join(filepath.Dir(cfg.WrittenLog), "pitchdf.log")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	slog.SetDefault(logger)

	reconciler, err := newReconciler(cfg, logger)
	if err != nil {
		return err
	}

	written, err := store.OpenWrittenLog(cfg.WrittenLog)
	if err != nil {
		return fmt.Errorf("open written log: %w", err)
	}
	defer written.Close()

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		cache    *db.DB
		dlWorker *downloader.Worker
		jobs     <-chan feedJob
		source   string
	)
	if cfg.Input != "" {
		var n int
		if jobs, n, err = localJobs(ctx, cfg.Input); err != nil {
			return err
		}
		source = fmt.Sprintf("%s (%d files)", cfg.Input, n)
	} else {
		if cfg.CachePath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
				return fmt.Errorf("create cache dir: %w", err)
			}
			if cache, err = db.New(cfg.CachePath); err != nil {
				return fmt.Errorf("open feed cache: %w", err)
			}
			defer cache.Close()
		}
		jobs, dlWorker = remoteJobs(ctx, cfg, written.SnapshotPkMap(), cache, logger)
		source = fmt.Sprintf("%s %s..%s", cfg.BaseURL, cfg.Start, cfg.endDate.Format(dateLayout))
	}

	logger.Info("starting pitchdf",
		"source", source,
		"out_dir", cfg.OutDir,
		"written_log", cfg.WrittenLog,
		"already_written", written.Count(),
		"flush_games", cfg.FlushGames,
		"flush_every", cfg.FlushEvery)

	p := &pipeline{
		cfg:        cfg,
		logger:     logger,
		reconciler: reconciler,
		written:    written,
		cache:      cache,
		runID:      runID,
	}

	var totals counters
	if cfg.TUI {
		totals = runWithTUI(ctx, p, jobs, source)
	} else {
		totals = p.run(ctx, jobs)
	}

	attrs := []any{
		"games_attempted", totals.attempted,
		"games_written", totals.succeeded,
		"games_skipped", totals.skipped,
		"games_failed", totals.failed,
		"batches_written", totals.batches,
		"rows_written", totals.rows,
	}
	if dlWorker != nil {
		st := dlWorker.GetStats()
		attrs = append(attrs, "downloaded", st.GamesDownloaded, "cache_hits", st.GamesCached, "download_failures", st.GamesFailed)
	}
	logger.Info("run complete", attrs...)

	fmt.Fprintf(stdout, "Unique events: %s\n", strings.Join(reconciler.UniqueEvents(), ", "))
	return nil
}

func newReconciler(cfg Config, logger *slog.Logger) (*rules.Reconciler, error) {
	opts := []rules.Option{rules.WithLogger(logger)}
	if cfg.Corrections != "" {
		table, err := corrections.Load(cfg.Corrections)
		if err != nil {
			return nil, fmt.Errorf("load corrections: %w", err)
		}
		logger.Info("loaded corrections", "path", cfg.Corrections, "version", table.Version(), "entries", table.Len())
		opts = append(opts, rules.WithCorrections(table))
	}
	if cfg.Aliases != "" {
		table, err := alias.LoadTable(cfg.Aliases)
		if err != nil {
			return nil, fmt.Errorf("load aliases: %w", err)
		}
		opts = append(opts, rules.WithAliases(table))
	}
	return rules.NewReconciler(opts...), nil
}

// runWithTUI drives the pipeline in the background while the progress view
// owns the terminal. Quitting the view stops the pipeline after a flush.
func runWithTUI(ctx context.Context, p *pipeline, jobs <-chan feedJob, source string) counters {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(initialModel(source), tea.WithContext(runCtx))
	p.onUpdate = func(u gameUpdate) { prog.Send(u) }

	done := make(chan counters, 1)
	go func() {
		totals := p.run(runCtx, jobs)
		done <- totals
		prog.Send(doneMsg{})
	}()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		p.logger.Error("progress view failed", "err", err)
	}
	cancel()
	return <-done
}
