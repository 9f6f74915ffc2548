package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ArchiveSummary aggregates a directory of game archives.
type ArchiveSummary struct {
	Games         int64
	Complete      int64
	Player1Wins   int64
	Player2Wins   int64
	Draws         int64
	AvgPlacements float64
	AvgScore1     float64
	AvgScore2     float64
}

// ArchiveStats summarises every *.parquet archive below root using DuckDB.
func ArchiveStats(ctx context.Context, root string) (ArchiveSummary, error) {
	var s ArchiveSummary

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return s, err
	}
	defer db.Close()
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.ExecContext(ctx, "PRAGMA threads=4")

	glob := filepath.Join(root, "**", "*.parquet")
	view := `CREATE OR REPLACE VIEW archive AS
		SELECT * FROM read_parquet('` + escapeSQLString(glob) + `', union_by_name=true)`
	if _, err := db.ExecContext(ctx, view); err != nil {
		return s, fmt.Errorf("open archive %s: %w", root, err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE game_complete),
			COUNT(*) FILTER (WHERE game_complete AND score_1 > score_2),
			COUNT(*) FILTER (WHERE game_complete AND score_2 > score_1),
			COUNT(*) FILTER (WHERE game_complete AND score_1 = score_2),
			COALESCE(AVG(len(cells)), 0),
			COALESCE(AVG(score_1) FILTER (WHERE game_complete), 0),
			COALESCE(AVG(score_2) FILTER (WHERE game_complete), 0)
		FROM archive`).Scan(
		&s.Games, &s.Complete, &s.Player1Wins, &s.Player2Wins, &s.Draws,
		&s.AvgPlacements, &s.AvgScore1, &s.AvgScore2,
	)
	if err != nil {
		return s, fmt.Errorf("query archive %s: %w", root, err)
	}
	return s, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
