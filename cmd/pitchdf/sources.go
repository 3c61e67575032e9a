package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/scraper/db"
	"github.com/brensch/pitchdf/scraper/discovery"
	"github.com/brensch/pitchdf/scraper/downloader"
)

// localJobs reads every file matching pattern, in name order.
func localJobs(ctx context.Context, pattern string) (<-chan feedJob, int, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("bad -input pattern: %w", err)
	}
	if len(paths) == 0 {
		return nil, 0, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(paths)

	jobs := make(chan feedJob)
	go func() {
		defer close(jobs)
		for _, path := range paths {
			raw, err := feed.ReadRaw(path)
			select {
			case jobs <- feedJob{label: path, raw: raw, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return jobs, len(paths), nil
}

// remoteJobs discovers final games in the configured date range and
// downloads them through the cache. Games cached by an earlier run but never
// reconciled are queued first.
func remoteJobs(ctx context.Context, cfg Config, known map[int64]bool, cache *db.DB, logger *slog.Logger) (<-chan feedJob, *downloader.Worker) {
	discConfig := discovery.DefaultConfig()
	discConfig.BaseURL = cfg.BaseURL
	discConfig.Start, discConfig.End = cfg.startDate, cfg.endDate
	discConfig.TeamID = cfg.TeamID
	discConfig.RequestDelay = cfg.RequestDelay
	discWorker := discovery.NewWorker(discConfig, known, logger)

	dlConfig := downloader.DefaultConfig()
	dlConfig.BaseURL = cfg.BaseURL
	dlConfig.NumWorkers = cfg.Workers
	dlWorker := downloader.NewWorker(dlConfig, cache, logger)

	gamePkChan := make(chan int64, 1000)
	go func() {
		defer close(gamePkChan)
		if cache != nil {
			pending, err := cache.GetUnprocessedGames(100000)
			if err != nil {
				logger.Warn("listing unprocessed cached games failed", "err", err)
			}
			for _, pk := range pending {
				if known[pk] {
					continue
				}
				discWorker.AddKnownID(pk)
				select {
				case gamePkChan <- pk:
				case <-ctx.Done():
					return
				}
			}
			if len(pending) > 0 {
				logger.Info("requeued cached games", "count", len(pending))
			}
		}
		if err := discWorker.Discover(ctx, gamePkChan); err != nil && ctx.Err() == nil {
			logger.Error("discovery error", "err", err)
		}
	}()

	results := make(chan downloader.Result, cfg.Workers)
	go dlWorker.Start(ctx, gamePkChan, results)

	jobs := make(chan feedJob)
	go func() {
		defer close(jobs)
		for r := range results {
			job := feedJob{label: strconv.FormatInt(r.Pk, 10), raw: r.Raw, err: r.Err}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	return jobs, dlWorker
}
