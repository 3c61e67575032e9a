package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/pitchdf/game"
	"github.com/brensch/pitchdf/rules"
)

var _ rules.Sink = (*BatchWriter)(nil)

// BatchWriter streams pitch rows into one parquet file under outDir/tmp and
// moves it into outDir on Finalize. It implements rules.Sink.
type BatchWriter struct {
	outDir string
	tmpDir string

	name    string
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[PitchRow]
	row    [1]PitchRow

	bufferedGames int
	bufferedRows  int

	finalPath string
}

func NewBatchWriter(outDir, runID string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	outPath := filepath.Join(absOut, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[PitchRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", SchemaVersion)
	w.SetKeyValueMetadata("run_id", runID)

	return &BatchWriter{
		outDir:  absOut,
		tmpDir:  tmpDir,
		name:    name,
		tmpPath: tmpPath,
		outPath: outPath,
		file:    f,
		writer:  w,
	}, nil
}

func (b *BatchWriter) TmpPath() string    { return b.tmpPath }
func (b *BatchWriter) OutPath() string    { return b.outPath }
func (b *BatchWriter) BufferedGames() int { return b.bufferedGames }
func (b *BatchWriter) BufferedRows() int  { return b.bufferedRows }

// FinalPath is the published file, empty until Finalize moved one into place.
func (b *BatchWriter) FinalPath() string { return b.finalPath }

// Append writes one pitch row.
func (b *BatchWriter) Append(state game.Snapshot, pitch rules.Pitch) error {
	if b.writer == nil || b.file == nil {
		return fmt.Errorf("batch writer is closed")
	}
	b.row[0] = NewPitchRow(state, pitch)
	if _, err := b.writer.Write(b.row[:]); err != nil {
		return err
	}
	b.bufferedRows++
	return nil
}

func (b *BatchWriter) NoteGameWritten() {
	b.bufferedGames++
}

// Finalize closes the parquet writer and moves the file from tmp/ to outDir.
// If no rows were written, the tmp file is removed and FinalPath stays empty.
func (b *BatchWriter) Finalize() error {
	if b.writer == nil && b.file == nil {
		return nil
	}

	var closeErr error
	if b.writer != nil {
		closeErr = b.writer.Close()
		b.writer = nil
	}
	var fileErr error
	if b.file != nil {
		_ = b.file.Sync()
		fileErr = b.file.Close()
		b.file = nil
	}
	if closeErr != nil {
		return fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close parquet file: %w", fileErr)
	}

	if b.bufferedRows == 0 {
		_ = os.Remove(b.tmpPath)
		return nil
	}
	if err := os.Rename(b.tmpPath, b.outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	b.finalPath = b.outPath
	return nil
}

// Abort closes the writer and removes the tmp file without publishing.
func (b *BatchWriter) Abort() error {
	var err error
	if b.writer != nil {
		err = b.writer.Close()
		b.writer = nil
	}
	if b.file != nil {
		if cerr := b.file.Close(); err == nil {
			err = cerr
		}
		b.file = nil
	}
	if rerr := os.Remove(b.tmpPath); rerr != nil && !os.IsNotExist(rerr) && err == nil {
		err = rerr
	}
	return err
}
