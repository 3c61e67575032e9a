package feed

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Decode parses a raw live-feed document.
func Decode(raw []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if g.GameData.Game.ID == "" {
		return nil, fmt.Errorf("decode feed: missing gameData.game.id")
	}
	if g.GamePk == 0 {
		g.GamePk = g.GameData.Game.Pk
	}
	return &g, nil
}

// ReadRaw reads a feed document from disk. Files ending in .gz are
// decompressed.
func ReadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip %s: %w", path, err)
	}
	return out, nil
}

// ReadFile reads and decodes a feed document from disk.
func ReadFile(path string) (*Game, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Str returns the value of an optional string field, or "".
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Bool returns the value of an optional bool field, or false.
func Bool(p *bool) bool {
	return p != nil && *p
}
