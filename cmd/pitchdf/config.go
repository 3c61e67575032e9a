package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
)

const dateLayout = "2006-01-02"

// Config is read from PITCHDF_* environment variables first; flags override.
type Config struct {
	OutDir      string `env:"PITCHDF_OUT_DIR" envDefault:"data"`
	WrittenLog  string `env:"PITCHDF_WRITTEN_LOG" envDefault:"pitchdf-data/written_games.log"`
	CachePath   string `env:"PITCHDF_CACHE" envDefault:"pitchdf-data/feeds.db"`
	DebugDir    string `env:"PITCHDF_DEBUG_DIR"`
	Corrections string `env:"PITCHDF_CORRECTIONS"`
	Aliases     string `env:"PITCHDF_ALIASES"`

	BaseURL      string        `env:"PITCHDF_BASE_URL" envDefault:"https://statsapi.mlb.com"`
	Start        string        `env:"PITCHDF_START"`
	End          string        `env:"PITCHDF_END"`
	TeamID       int           `env:"PITCHDF_TEAM_ID"`
	Input        string        `env:"PITCHDF_INPUT"`
	Workers      int           `env:"PITCHDF_WORKERS" envDefault:"4"`
	RequestDelay time.Duration `env:"PITCHDF_DELAY" envDefault:"500ms"`

	FlushGames int           `env:"PITCHDF_FLUSH_GAMES" envDefault:"1000"`
	FlushEvery time.Duration `env:"PITCHDF_FLUSH_EVERY" envDefault:"1h"`

	LogFormat string `env:"PITCHDF_LOG_FORMAT" envDefault:"pretty"`
	LogLevel  string `env:"PITCHDF_LOG_LEVEL" envDefault:"info"`
	TUI       bool   `env:"PITCHDF_TUI"`

	startDate time.Time
	endDate   time.Time
}

// loadConfig parses the environment, then args.
func loadConfig(args []string, stderr io.Writer) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("pitchdf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "Directory to write batch .parquet files")
	fs.StringVar(&cfg.WrittenLog, "log-path", cfg.WrittenLog, "Append-only log of games already written")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "SQLite cache of raw feeds (empty disables)")
	fs.StringVar(&cfg.DebugDir, "debug-dir", cfg.DebugDir, "Write the partial records of failed games here")
	fs.StringVar(&cfg.Corrections, "corrections", cfg.Corrections, "Runner correction table JSON (default: embedded)")
	fs.StringVar(&cfg.Aliases, "aliases", cfg.Aliases, "Name alias table JSON (default: embedded)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Stats API root")
	fs.StringVar(&cfg.Start, "start", cfg.Start, "First game date, YYYY-MM-DD")
	fs.StringVar(&cfg.End, "end", cfg.End, "Last game date, YYYY-MM-DD (default: start)")
	fs.IntVar(&cfg.TeamID, "team", cfg.TeamID, "Only games of this team id")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "Glob of local feed files (.json or .json.gz) instead of downloading")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent downloads")
	fs.DurationVar(&cfg.RequestDelay, "delay", cfg.RequestDelay, "Delay between schedule requests")
	fs.IntVar(&cfg.FlushGames, "flush-games", cfg.FlushGames, "Flush when buffered games reaches this count")
	fs.DurationVar(&cfg.FlushEvery, "flush-every", cfg.FlushEvery, "Flush at this interval regardless of buffered count")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "pretty, json or text")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Show a progress view instead of logging to stderr")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OutDir == "" {
		return errors.New("out-dir is required")
	}
	if c.WrittenLog == "" {
		return errors.New("log-path is required")
	}
	if c.FlushGames <= 0 {
		c.FlushGames = 1000
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}

	if c.Input != "" {
		if c.Start != "" || c.End != "" {
			return errors.New("-input cannot be combined with -start/-end")
		}
		return nil
	}
	if c.Start == "" {
		return errors.New("either -input or -start is required")
	}
	start, err := time.Parse(dateLayout, c.Start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end := start
	if c.End != "" {
		if end, err = time.Parse(dateLayout, c.End); err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}
	if end.Before(start) {
		return fmt.Errorf("-end %s is before -start %s", c.End, c.Start)
	}
	c.startDate, c.endDate = start, end
	return nil
}
