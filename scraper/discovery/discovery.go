package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const dateLayout = "2006-01-02"

// Config holds discovery worker configuration
type Config struct {
	BaseURL      string        // statsapi root, e.g. https://statsapi.mlb.com
	Start        time.Time     // First day to walk (inclusive)
	End          time.Time     // Last day to walk (inclusive)
	TeamID       int           // Restrict to one team (0 = all)
	GameTypes    []string      // Accepted gameType codes (R regular, F/D/L/W postseason)
	RequestDelay time.Duration // Delay between HTTP requests to be polite
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return Config{
		BaseURL:      "https://statsapi.mlb.com",
		Start:        today.AddDate(0, 0, -1),
		End:          today.AddDate(0, 0, -1),
		GameTypes:    []string{"R", "F", "D", "L", "W"},
		RequestDelay: 500 * time.Millisecond,
	}
}

// Worker discovers final gamePks from the schedule endpoint
type Worker struct {
	config    Config
	client    *http.Client
	logger    *slog.Logger
	knownIDs  map[int64]bool
	knownMu   sync.RWMutex
	gameTypes map[string]bool
}

// NewWorker creates a new discovery worker. A nil logger means
// slog.Default().
func NewWorker(config Config, existingIDs map[int64]bool, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if existingIDs == nil {
		existingIDs = make(map[int64]bool)
	}
	types := make(map[string]bool, len(config.GameTypes))
	for _, t := range config.GameTypes {
		types[t] = true
	}

	return &Worker{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger.With("component", "discovery"),
		knownIDs:  existingIDs,
		gameTypes: types,
	}
}

type scheduleResponse struct {
	Dates []struct {
		Date  string `json:"date"`
		Games []struct {
			GamePk   int64  `json:"gamePk"`
			GameType string `json:"gameType"`
			Status   struct {
				CodedGameState string `json:"codedGameState"`
			} `json:"status"`
		} `json:"games"`
	} `json:"dates"`
}

// Discover walks the configured date range one day at a time and sends new
// gamePks of finished games to the channel. It does not close the channel.
func (w *Worker) Discover(ctx context.Context, gamePkChan chan<- int64) error {
	if w.config.End.Before(w.config.Start) {
		return fmt.Errorf("discovery: end %s before start %s",
			w.config.End.Format(dateLayout), w.config.Start.Format(dateLayout))
	}
	w.logger.Info("walking schedule",
		"start", w.config.Start.Format(dateLayout), "end", w.config.End.Format(dateLayout))

	totalNewGames := 0
	for day := w.config.Start; !day.After(w.config.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}

		pks, err := w.getScheduledGames(ctx, day)
		if err != nil {
			w.logger.Warn("schedule request failed", "day", day.Format(dateLayout), "err", err)
			continue
		}

		newGames := 0
		for _, pk := range pks {
			w.knownMu.RLock()
			known := w.knownIDs[pk]
			w.knownMu.RUnlock()
			if known {
				continue
			}

			w.knownMu.Lock()
			w.knownIDs[pk] = true
			w.knownMu.Unlock()

			select {
			case gamePkChan <- pk:
				newGames++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if newGames > 0 {
			w.logger.Info("new final games", "day", day.Format(dateLayout), "count", newGames)
		}
		totalNewGames += newGames

		// Rate limiting
		select {
		case <-time.After(w.config.RequestDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.logger.Info("schedule walk complete", "new_games", totalNewGames)
	return nil
}

// getScheduledGames returns the final games of one day
func (w *Worker) getScheduledGames(ctx context.Context, day time.Time) ([]int64, error) {
	q := url.Values{}
	q.Set("sportId", "1")
	q.Set("date", day.Format(dateLayout))
	if w.config.TeamID != 0 {
		q.Set("teamId", strconv.Itoa(w.config.TeamID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.BaseURL+"/api/v1/schedule?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "pitchdf/1.0 (pitch-dataset-builder)")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var sched scheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&sched); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	var pks []int64
	seen := make(map[int64]bool)
	for _, d := range sched.Dates {
		for _, g := range d.Games {
			if g.Status.CodedGameState != "F" || !w.gameTypes[g.GameType] || seen[g.GamePk] {
				continue
			}
			seen[g.GamePk] = true
			pks = append(pks, g.GamePk)
		}
	}
	return pks, nil
}

// AddKnownID adds a gamePk to the known set (used for deduplication)
func (w *Worker) AddKnownID(gamePk int64) {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	w.knownIDs[gamePk] = true
}
