package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// DB caches raw live-feed documents in SQLite so a game is only downloaded
// once. Documents are stored zstd-compressed.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Game is one cached game.
type Game struct {
	Pk          int64
	GameID      string
	FetchedAt   time.Time
	IsProcessed bool
	Error       string
}

// New opens (or creates) the cache at dbPath.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		pk INTEGER PRIMARY KEY,         -- statsapi gamePk
		game_id TEXT,                   -- e.g. "2017/07/18/tormlb-bosmlb-1", set once decoded
		fetched_at INTEGER NOT NULL,    -- unix millis
		is_processed BOOLEAN DEFAULT 0, -- reconciled, successfully or not
		error TEXT                      -- last reconciliation error, if any
	);

	CREATE TABLE IF NOT EXISTS feeds (
		pk INTEGER PRIMARY KEY,
		raw BLOB NOT NULL,              -- zstd-compressed live-feed JSON
		FOREIGN KEY(pk) REFERENCES games(pk)
	);

	CREATE INDEX IF NOT EXISTS idx_games_is_processed ON games(is_processed);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertFeed stores the raw document for pk. Existing entries are kept.
func (db *DB) InsertFeed(pk int64, raw []byte) error {
	compressed := db.enc.EncodeAll(raw, make([]byte, 0, len(raw)/8))

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO games (pk, fetched_at) VALUES (?, ?)", pk, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert game %d: %w", pk, err)
	}
	if _, err := tx.Exec("INSERT OR IGNORE INTO feeds (pk, raw) VALUES (?, ?)", pk, compressed); err != nil {
		return fmt.Errorf("failed to insert feed %d: %w", pk, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetFeed returns the cached document for pk. ok is false on a miss.
func (db *DB) GetFeed(pk int64) (raw []byte, ok bool, err error) {
	db.mu.Lock()
	var compressed []byte
	err = db.conn.QueryRow("SELECT raw FROM feeds WHERE pk = ?", pk).Scan(&compressed)
	db.mu.Unlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	raw, err = db.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress feed %d: %w", pk, err)
	}
	return raw, true, nil
}

// MarkGameProcessed records the outcome of reconciling pk. An empty errMsg
// means success.
func (db *DB) MarkGameProcessed(pk int64, gameID, errMsg string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}
	_, err := db.conn.Exec("UPDATE games SET is_processed = 1, game_id = ?, error = ? WHERE pk = ?", gameID, errVal, pk)
	return err
}

// GetUnprocessedGames returns cached games that have not been reconciled.
func (db *DB) GetUnprocessedGames(limit int) ([]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT pk FROM games WHERE is_processed = 0 ORDER BY pk LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pks []int64
	for rows.Next() {
		var pk int64
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
	return pks, rows.Err()
}

// FailedGames returns processed games whose reconciliation failed, most
// recently fetched first.
func (db *DB) FailedGames(limit int) ([]Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT pk, game_id, fetched_at, is_processed, error FROM games
		WHERE error IS NOT NULL ORDER BY fetched_at DESC, pk DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var (
			g         Game
			gameID    sql.NullString
			errMsg    sql.NullString
			fetchedAt int64
		)
		if err := rows.Scan(&g.Pk, &gameID, &fetchedAt, &g.IsProcessed, &errMsg); err != nil {
			return nil, err
		}
		g.GameID = gameID.String
		g.Error = errMsg.String
		g.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		games = append(games, g)
	}
	return games, rows.Err()
}

// Stats returns counts of cached, processed and failed games.
func (db *DB) Stats() (totalGames, processedGames, failedGames int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	err = db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames)
	if err != nil {
		return
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE is_processed = 1").Scan(&processedGames)
	if err != nil {
		return
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE error IS NOT NULL").Scan(&failedGames)
	return
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.enc.Close()
	db.dec.Close()
	return db.conn.Close()
}
