package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/pitchdf/scraper/db"
)

// Config holds downloader configuration
type Config struct {
	NumWorkers     int
	BaseURL        string // statsapi root
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		NumWorkers:     4,
		BaseURL:        "https://statsapi.mlb.com",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     2,
		RetryDelay:     2 * time.Second,
	}
}

// Stats holds download statistics
type Stats struct {
	GamesDownloaded int64
	GamesCached     int64
	GamesFailed     int64
	BytesTotal      int64
}

// Result is one fetched live feed.
type Result struct {
	Pk     int64
	Raw    []byte
	Cached bool
	Err    error
}

// Worker manages a pool of feed downloaders
type Worker struct {
	config Config
	db     *db.DB
	client *http.Client
	logger *slog.Logger
	stats  Stats
}

// NewWorker creates a new download worker pool. database may be nil, in
// which case every feed is fetched over the network. A nil logger means
// slog.Default().
func NewWorker(config Config, database *db.DB, logger *slog.Logger) *Worker {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		config: config,
		db:     database,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger.With("component", "downloader"),
	}
}

// Start fetches every gamePk from the channel and sends one Result per pk.
// It returns once the input is drained or ctx is done, and closes out.
func (w *Worker) Start(ctx context.Context, gamePkChan <-chan int64, out chan<- Result) {
	var wg sync.WaitGroup

	// Start worker pool
	for i := 0; i < w.config.NumWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, gamePkChan, out)
		}(i)
	}

	// Wait for all workers to finish
	wg.Wait()
	close(out)
}

// worker processes gamePks from the channel
func (w *Worker) worker(ctx context.Context, id int, gamePkChan <-chan int64, out chan<- Result) {
	for {
		var (
			pk int64
			ok bool
		)
		select {
		case pk, ok = <-gamePkChan:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}

		raw, cached, err := w.Fetch(ctx, pk)
		if err != nil {
			w.logger.Warn("download failed", "worker", id, "pk", pk, "err", err)
		}

		select {
		case out <- Result{Pk: pk, Raw: raw, Cached: cached, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}

// Fetch returns the live feed for pk, reading through the cache when one is
// configured.
func (w *Worker) Fetch(ctx context.Context, pk int64) (raw []byte, cached bool, err error) {
	if w.db != nil {
		raw, ok, err := w.db.GetFeed(pk)
		if err != nil {
			w.logger.Warn("cache read failed, refetching", "pk", pk, "err", err)
		} else if ok {
			atomic.AddInt64(&w.stats.GamesCached, 1)
			return raw, true, nil
		}
	}

	for attempt := 0; ; attempt++ {
		raw, err = w.download(ctx, pk)
		if err == nil || attempt >= w.config.MaxRetries || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(w.config.RetryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
		}
	}
	if err != nil {
		atomic.AddInt64(&w.stats.GamesFailed, 1)
		return nil, false, err
	}

	if w.db != nil {
		if err := w.db.InsertFeed(pk, raw); err != nil {
			w.logger.Warn("caching feed failed", "pk", pk, "err", err)
		}
	}
	atomic.AddInt64(&w.stats.GamesDownloaded, 1)
	atomic.AddInt64(&w.stats.BytesTotal, int64(len(raw)))
	return raw, false, nil
}

// download performs one GET of the live-feed endpoint
func (w *Worker) download(ctx context.Context, pk int64) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1.1/game/%d/feed/live", w.config.BaseURL, pk)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "pitchdf/1.0 (pitch-dataset-builder)")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// GetStats returns current statistics
func (w *Worker) GetStats() Stats {
	return Stats{
		GamesDownloaded: atomic.LoadInt64(&w.stats.GamesDownloaded),
		GamesCached:     atomic.LoadInt64(&w.stats.GamesCached),
		GamesFailed:     atomic.LoadInt64(&w.stats.GamesFailed),
		BytesTotal:      atomic.LoadInt64(&w.stats.BytesTotal),
	}
}
