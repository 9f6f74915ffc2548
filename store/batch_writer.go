package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brensch/voro/game"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const DefaultBatchGames = 100

// BatchWriter appends finished games to rolling archive shards. A shard is
// written under outDir/tmp and moved into outDir once it holds maxGames
// games or is flushed.
type BatchWriter struct {
	mu sync.Mutex

	outDir   string
	tmpDir   string
	maxGames int

	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[ArchiveRow]

	bufferedGames int
}

func NewBatchWriter(outDir string, maxGames int) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if maxGames <= 0 {
		maxGames = DefaultBatchGames
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	return &BatchWriter{outDir: absOut, tmpDir: tmpDir, maxGames: maxGames}, nil
}

func (b *BatchWriter) open() error {
	name := fmt.Sprintf("games_%d.parquet", time.Now().UnixNano())
	tmpPath := filepath.Join(b.tmpDir, name+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tmp parquet: %w", err)
	}
	w := parquet.NewGenericWriter[ArchiveRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", ArchiveSchema)

	b.tmpPath = tmpPath
	b.outPath = filepath.Join(b.outDir, name)
	b.file = f
	b.writer = w
	return nil
}

// BufferedGames is the number of games in the open shard.
func (b *BatchWriter) BufferedGames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferedGames
}

// ArchiveGame appends one game. It completes the shard when it is full.
func (b *BatchWriter) ArchiveGame(_ context.Context, g game.Game, moves []game.Placement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer == nil {
		if err := b.open(); err != nil {
			return err
		}
	}
	if _, err := b.writer.Write([]ArchiveRow{NewArchiveRow(g, moves)}); err != nil {
		return fmt.Errorf("write archive row: %w", err)
	}
	b.bufferedGames++
	if b.bufferedGames >= b.maxGames {
		_, _, err := b.finalizeLocked()
		return err
	}
	return nil
}

// Flush completes the open shard, if any, and returns where it went.
func (b *BatchWriter) Flush() (outPath string, games int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalizeLocked()
}

// Close flushes the open shard.
func (b *BatchWriter) Close() error {
	_, _, err := b.Flush()
	return err
}

// finalizeLocked closes the parquet writer and moves the file from tmp/ to
// outDir. If no games were written, the tmp file is removed and outPath is
// returned empty.
func (b *BatchWriter) finalizeLocked() (outPath string, games int, err error) {
	if b.writer == nil && b.file == nil {
		return "", 0, nil
	}

	games = b.bufferedGames
	outPath = b.outPath
	b.bufferedGames = 0

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
		return "", 0, fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return "", 0, fmt.Errorf("close parquet file: %w", fileErr)
	}

	if games == 0 {
		_ = os.Remove(b.tmpPath)
		return "", 0, nil
	}
	if err := os.Rename(b.tmpPath, b.outPath); err != nil {
		return "", 0, fmt.Errorf("rename parquet: %w", err)
	}
	return outPath, games, nil
}
