package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// WrittenGame identifies one game whose pitches are in a published batch.
type WrittenGame struct {
	Pk int64
	ID string
}

// WrittenLog tracks which games have been successfully written.
// It is backed by an append-only log file with one game per line.
//
// On startup we read the file into memory for fast dedupe.
// On success we append the games and fsync.
//
// Lines that do not parse (e.g. a partial final line after a crash) are
// skipped.
//
// Format: <gamePk>\t<gameID>\n
type WrittenLog struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	written map[int64]string
}

func OpenWrittenLog(path string) (*WrittenLog, error) {
	written := make(map[int64]string)

	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}

	// Best-effort load existing games.
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			pk, id, ok := parseLogLine(scanner.Text())
			if !ok {
				continue
			}
			written[pk] = id
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &WrittenLog{
		path:    path,
		file:    file,
		written: written,
	}, nil
}

func parseLogLine(line string) (int64, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, "", false
	}
	pkText, id, _ := strings.Cut(line, "\t")
	pk, err := strconv.ParseInt(pkText, 10, 64)
	if err != nil || pk <= 0 {
		return 0, "", false
	}
	return pk, id, true
}

func (l *WrittenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *WrittenLog) Has(pk int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.written[pk]
	return ok
}

func (l *WrittenLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.written)
}

// SnapshotPkMap returns a copy of the written set, suitable for seeding
// discovery.
func (l *WrittenLog) SnapshotPkMap() map[int64]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := make(map[int64]bool, len(l.written))
	for pk := range l.written {
		m[pk] = true
	}
	return m
}

// AddMany appends multiple games and syncs once.
// Games already present in the log are ignored.
func (l *WrittenLog) AddMany(games []WrittenGame) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	toAdd := 0
	for _, g := range games {
		if g.Pk <= 0 {
			continue
		}
		if _, ok := l.written[g.Pk]; ok {
			continue
		}
		if _, err := l.file.WriteString(strconv.FormatInt(g.Pk, 10) + "\t" + g.ID + "\n"); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		l.written[g.Pk] = g.ID
		toAdd++
	}

	if toAdd == 0 {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
