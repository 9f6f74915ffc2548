package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/brensch/voro/game"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ArchiveSchema is written into the key/value metadata of every archive.
const ArchiveSchema = "voro_game_archive_v1"

// ArchiveRow is one game, intended for long-term storage and offline
// analysis. Placements are stored as parallel repeated columns.
type ArchiveRow struct {
	GameID    int64  `parquet:"game_id"`
	Name      string `parquet:"name"`
	BoardID   int64  `parquet:"board_id,dict"`
	Player1   string `parquet:"player1,dict"`
	Player2   string `parquet:"player2,dict"`
	CreatedAt int64  `parquet:"created_at_ms"`

	Cells      []int32 `parquet:"cells"`
	Colors     []int32 `parquet:"colors"`
	PlacedAtMs []int64 `parquet:"placed_at_ms"`

	ToMove               int32  `parquet:"to_move"`
	MovesLeft            int32  `parquet:"moves_left"`
	BorderFull           bool   `parquet:"border_full"`
	ConnectionsRemaining *int32 `parquet:"connections_remaining,optional"`
	GameComplete         bool   `parquet:"game_complete"`
	Score1               int32  `parquet:"score_1"`
	Score2               int32  `parquet:"score_2"`
}

// NewArchiveRow flattens a game and its placements.
func NewArchiveRow(g game.Game, moves []game.Placement) ArchiveRow {
	row := ArchiveRow{
		GameID:       g.ID,
		Name:         g.Name,
		BoardID:      g.BoardID,
		Player1:      g.Player1,
		Player2:      g.Player2,
		CreatedAt:    g.CreatedAt.UnixMilli(),
		Cells:        make([]int32, len(moves)),
		Colors:       make([]int32, len(moves)),
		PlacedAtMs:   make([]int64, len(moves)),
		ToMove:       int32(g.Status.ToMove),
		MovesLeft:    int32(g.Status.MovesLeft),
		BorderFull:   g.Status.BorderFull,
		GameComplete: g.Status.GameComplete,
		Score1:       int32(g.Status.Score1),
		Score2:       int32(g.Status.Score2),
	}
	if g.Status.ConnectionsRemaining != nil {
		v := int32(*g.Status.ConnectionsRemaining)
		row.ConnectionsRemaining = &v
	}
	for i, m := range moves {
		row.Cells[i] = int32(m.Cell)
		row.Colors[i] = int32(m.Player)
		row.PlacedAtMs[i] = m.PlacedAt.UnixMilli()
	}
	return row
}

// Game rebuilds the game record stored in the row.
func (r ArchiveRow) Game() game.Game {
	g := game.Game{
		ID:        r.GameID,
		Name:      r.Name,
		BoardID:   r.BoardID,
		Player1:   r.Player1,
		Player2:   r.Player2,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		Status: game.Status{
			ToMove:       game.Player(r.ToMove),
			MovesLeft:    int(r.MovesLeft),
			BorderFull:   r.BorderFull,
			GameComplete: r.GameComplete,
			Score1:       int(r.Score1),
			Score2:       int(r.Score2),
		},
	}
	if r.ConnectionsRemaining != nil {
		v := int(*r.ConnectionsRemaining)
		g.Status.ConnectionsRemaining = &v
	}
	return g
}

// Placements rebuilds the ordered placements stored in the row.
func (r ArchiveRow) Placements() []game.Placement {
	moves := make([]game.Placement, len(r.Cells))
	for i := range moves {
		moves[i] = game.Placement{
			Cell:   int(r.Cells[i]),
			Player: game.Player(r.Colors[i]),
		}
		if i < len(r.PlacedAtMs) {
			moves[i].PlacedAt = time.UnixMilli(r.PlacedAtMs[i]).UTC()
		}
	}
	return moves
}

// WriteArchive writes rows to outPath, replacing any existing file.
func WriteArchive(outPath string, rows []ArchiveRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Write to a temp file and rename atomically.
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", ArchiveSchema),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadArchive loads every row of an archive file.
func ReadArchive(path string) ([]ArchiveRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, err
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != ArchiveSchema {
		return nil, fmt.Errorf("%s: unexpected archive schema %q", path, schema)
	}

	reader := parquet.NewGenericReader[ArchiveRow](pf)
	defer reader.Close()

	rows := make([]ArchiveRow, 0, reader.NumRows())
	buf := make([]ArchiveRow, 64)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

// Export archives every game in db into outPath and returns the number of
// games written. When completeOnly is set, unfinished games are skipped.
func Export(ctx context.Context, db *DB, outPath string, completeOnly bool) (int, error) {
	games, err := db.ListGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}

	rows := make([]ArchiveRow, 0, len(games))
	for _, g := range games {
		if completeOnly && !g.Status.GameComplete {
			continue
		}
		moves, err := db.ListMoves(ctx, g.ID)
		if err != nil {
			return 0, fmt.Errorf("list moves of game %d: %w", g.ID, err)
		}
		rows = append(rows, NewArchiveRow(g, moves))
	}

	if err := WriteArchive(outPath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
