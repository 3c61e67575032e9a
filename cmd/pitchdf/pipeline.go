package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/rules"
	"github.com/brensch/pitchdf/scraper/db"
	"github.com/brensch/pitchdf/scraper/store"
)

// feedJob is one raw live-feed document waiting to be reconciled.
type feedJob struct {
	label string // file path or gamePk, for logs
	raw   []byte
	err   error
}

// gameUpdate reports the outcome of one job to the progress view.
type gameUpdate struct {
	Label   string
	GameID  string
	Pitches int
	Skipped bool
	Err     error
}

type counters struct {
	attempted int
	succeeded int
	skipped   int
	failed    int
	batches   int
	rows      int
}

type pipeline struct {
	cfg        Config
	logger     *slog.Logger
	reconciler *rules.Reconciler
	written    *store.WrittenLog
	cache      *db.DB
	runID      string
	onUpdate   func(gameUpdate)

	counters
	batch    *store.BatchWriter
	gamesBuf []store.WrittenGame
	pending  map[int64]bool
}

// run consumes jobs until the channel closes or ctx is done, flushing by
// count, on a ticker and at the end.
func (p *pipeline) run(ctx context.Context, jobs <-chan feedJob) counters {
	flushTicker := time.NewTicker(p.cfg.FlushEvery)
	defer flushTicker.Stop()

	sink := &rules.MemorySink{}
	for {
		select {
		case <-ctx.Done():
			p.flush("signal")
			p.logger.Info("interrupted; exiting")
			return p.counters
		case <-flushTicker.C:
			p.flush("ticker")
		case job, ok := <-jobs:
			if !ok {
				p.flush("final")
				return p.counters
			}
			p.handle(job, sink)
			if len(p.gamesBuf) >= p.cfg.FlushGames {
				p.flush("count")
			}
		}
	}
}

func (p *pipeline) handle(job feedJob, sink *rules.MemorySink) {
	update := p.reconcile(job, sink)
	if p.onUpdate != nil {
		p.onUpdate(update)
	}
	if update.Err == nil && !update.Skipped && p.succeeded%50 == 0 {
		p.logger.Info("progress",
			"succeeded", p.succeeded, "skipped", p.skipped, "failed", p.failed,
			"buffered_games", len(p.gamesBuf), "buffered_rows", p.bufferedRows())
	}
}

func (p *pipeline) reconcile(job feedJob, sink *rules.MemorySink) gameUpdate {
	update := gameUpdate{Label: job.label}
	if job.err != nil {
		p.failed++
		update.Err = job.err
		p.logger.Warn("fetch failed", "feed", job.label, "err", job.err)
		return update
	}

	g, err := feed.Decode(job.raw)
	if err != nil {
		p.failed++
		update.Err = err
		p.logger.Warn("decode failed", "feed", job.label, "err", err)
		return update
	}
	update.GameID = g.GameData.Game.ID

	if p.written.Has(g.GamePk) || p.pending[g.GamePk] {
		p.skipped++
		update.Skipped = true
		return update
	}

	p.attempted++
	sink.Reset()
	final, err := p.reconciler.Reconcile(g, sink)
	if err != nil {
		p.failed++
		update.Err = err
		p.recordFailure(g, sink, err)
		return update
	}

	if p.batch == nil {
		if p.batch, err = store.NewBatchWriter(p.cfg.OutDir, p.runID); err != nil {
			p.failed++
			update.Err = err
			p.logger.Error("open batch failed", "err", err)
			return update
		}
	}
	if err := sink.CopyTo(p.batch); err != nil {
		// The open batch may now hold part of this game; drop the whole batch
		// so no game is published partially.
		p.failed++
		update.Err = err
		p.logger.Error("append to batch failed; discarding batch", "game_pk", g.GamePk, "err", err)
		p.discardBatch()
		return update
	}
	p.batch.NoteGameWritten()
	p.gamesBuf = append(p.gamesBuf, store.WrittenGame{Pk: g.GamePk, ID: g.GameData.Game.ID})
	if p.pending == nil {
		p.pending = make(map[int64]bool)
	}
	p.pending[g.GamePk] = true
	p.markProcessed(g, "")

	p.succeeded++
	update.Pitches = len(sink.Records)
	p.logger.Debug("reconciled", "game", final.GameID, "game_pk", final.GamePk,
		"pitches", len(sink.Records), "final", fmt.Sprintf("%d-%d", final.AwayScore, final.HomeScore))
	return update
}

func (p *pipeline) recordFailure(g *feed.Game, sink *rules.MemorySink, err error) {
	attrs := []any{"game", g.GameData.Game.ID, "game_pk", g.GamePk, "err", err}
	var ge *rules.GameError
	if errors.As(err, &ge) {
		attrs = append(attrs, "at_bat", ge.AtBatIndex)
	}
	p.logger.Warn("reconcile failed", attrs...)
	p.markProcessed(g, err.Error())

	if p.cfg.DebugDir == "" || len(sink.Records) == 0 {
		return
	}
	path, werr := store.WriteBatchParquetAtomic(p.cfg.DebugDir, "debug_"+strconv.FormatInt(g.GamePk, 10), p.runID,
		store.RowsFromRecords(sink.Records))
	if werr != nil {
		p.logger.Warn("debug dump failed", "game_pk", g.GamePk, "err", werr)
		return
	}
	p.logger.Info("wrote partial records", "game_pk", g.GamePk, "rows", len(sink.Records), "path", path)
}

func (p *pipeline) markProcessed(g *feed.Game, errMsg string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.MarkGameProcessed(g.GamePk, g.GameData.Game.ID, errMsg); err != nil {
		p.logger.Warn("cache update failed", "game_pk", g.GamePk, "err", err)
	}
}

func (p *pipeline) bufferedRows() int {
	if p.batch == nil {
		return 0
	}
	return p.batch.BufferedRows()
}

func (p *pipeline) discardBatch() {
	if p.batch == nil {
		return
	}
	if err := p.batch.Abort(); err != nil {
		p.logger.Warn("abort batch failed", "err", err)
	}
	lost := len(p.gamesBuf)
	p.batch = nil
	p.gamesBuf = p.gamesBuf[:0]
	clear(p.pending)
	p.failed += lost
	p.succeeded -= lost
}

func (p *pipeline) flush(reason string) {
	if p.batch == nil || len(p.gamesBuf) == 0 {
		return
	}
	rows := p.batch.BufferedRows()
	p.logger.Info("flushing batch", "reason", reason, "buffered_games", len(p.gamesBuf), "buffered_rows", rows)

	if err := p.batch.Finalize(); err != nil {
		p.logger.Error("flush failed", "reason", reason, "err", err)
		p.batch = nil
		p.gamesBuf = p.gamesBuf[:0]
		clear(p.pending)
		return
	}
	if err := p.written.AddMany(p.gamesBuf); err != nil {
		// Not fatal: the parquet file is published.
		p.logger.Error("flush log append failed", "reason", reason, "err", err)
	}
	p.batches++
	p.rows += rows
	p.logger.Info("flushed batch", "games", len(p.gamesBuf), "rows", rows, "path", p.batch.FinalPath())

	p.batch = nil
	p.gamesBuf = p.gamesBuf[:0]
	clear(p.pending)
}
