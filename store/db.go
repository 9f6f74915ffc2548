// Package store persists boards, games and placements in SQLite and exports
// finished games to parquet archives.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brensch/voro/game"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrCellTaken is returned when a placement hits a cell that already
	// holds a token in the same game.
	ErrCellTaken = errors.New("store: cell already taken")
	// ErrConflict is returned when a game gained moves after the caller
	// read it, typically from another process sharing the database.
	ErrConflict = errors.New("store: game changed since read")
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the SQLite connection with thread-safe operations
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// BoardInfo is a stored board without its geometry.
type BoardInfo struct {
	ID        int64
	Name      string
	Cells     int
	CreatedAt time.Time
}

// Open creates a database connection and initializes the schema
func Open(ctx context.Context, dbPath string) (*DB, error) {
	dsn := dbPath + "?_foreign_keys=1"
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection also keeps
	// in-memory databases alive between calls.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS boards (
		board_id INTEGER PRIMARY KEY AUTOINCREMENT,
		board_name TEXT NOT NULL,
		board_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS games (
		game_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_name TEXT NOT NULL,
		board_id INTEGER NOT NULL REFERENCES boards(board_id),
		player1 TEXT NOT NULL DEFAULT '',
		player2 TEXT NOT NULL DEFAULT '',
		game_status_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- One row per placement; a cell holds at most one token per game.
	CREATE TABLE IF NOT EXISTS tokens (
		token_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL REFERENCES games(game_id),
		player INTEGER NOT NULL,
		location INTEGER NOT NULL,
		placed_on DATETIME NOT NULL,
		UNIQUE (game_id, location)
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_game_id ON tokens(game_id);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveBoard validates and stores a board, returning its id.
func (db *DB) SaveBoard(ctx context.Context, name string, b *game.Board) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("encode board: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO boards (board_name, board_json, created_at) VALUES (?, ?, ?)",
		name, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert board: %w", err)
	}
	return res.LastInsertId()
}

// LoadBoard reads and validates a stored board.
func (db *DB) LoadBoard(ctx context.Context, id int64) (*game.Board, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var raw string
	err := db.conn.QueryRowContext(ctx, "SELECT board_json FROM boards WHERE board_id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("board %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load board %d: %w", id, err)
	}
	b, err := game.ParseBoard([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("board %d: %w", id, err)
	}
	return b, nil
}

// ListBoards returns every stored board, oldest first.
func (db *DB) ListBoards(ctx context.Context) ([]BoardInfo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT board_id, board_name, json_array_length(board_json, '$.tokens'), created_at FROM boards ORDER BY board_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []BoardInfo
	for rows.Next() {
		var b BoardInfo
		if err := rows.Scan(&b.ID, &b.Name, &b.Cells, &b.CreatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// CreateGame inserts g with its current status and fills in its id.
func (db *DB) CreateGame(ctx context.Context, g *game.Game) (int64, error) {
	status, err := json.Marshal(g.Status)
	if err != nil {
		return 0, fmt.Errorf("encode status: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM boards WHERE board_id = ?", g.BoardID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("board %d: %w", g.BoardID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO games (game_name, board_id, player1, player2, game_status_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		g.Name, g.BoardID, g.Player1, g.Player2, string(status), g.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	g.ID = id
	return id, nil
}

const gameColumns = "game_id, game_name, board_id, player1, player2, game_status_json, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (game.Game, error) {
	var g game.Game
	var status string
	if err := row.Scan(&g.ID, &g.Name, &g.BoardID, &g.Player1, &g.Player2, &status, &g.CreatedAt); err != nil {
		return g, err
	}
	if err := json.Unmarshal([]byte(status), &g.Status); err != nil {
		return g, fmt.Errorf("decode status of game %d: %w", g.ID, err)
	}
	return g, nil
}

// LoadGame returns a single game.
func (db *DB) LoadGame(ctx context.Context, id int64) (*game.Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, err := scanGame(db.conn.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE game_id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGames returns every game, oldest first.
func (db *DB) ListGames(ctx context.Context) ([]game.Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, "SELECT "+gameColumns+" FROM games ORDER BY game_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// AppendMove records a placement and the status that follows it in a
// single transaction. seen is the number of moves the caller read; if the
// game holds a different number the write is refused with ErrConflict.
func (db *DB) AppendMove(ctx context.Context, gameID int64, seen int, p game.Placement, status game.Status) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if p.PlacedAt.IsZero() {
		p.PlacedAt = time.Now().UTC()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The guarded update takes the write lock before the count is read.
	res, err := tx.ExecContext(ctx,
		`UPDATE games SET game_status_json = ?
		WHERE game_id = ? AND (SELECT COUNT(*) FROM tokens WHERE game_id = ?) = ?`,
		string(raw), gameID, gameID, seen,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM games WHERE game_id = ?", gameID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("game %d: %w", gameID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("game %d after %d moves: %w", gameID, seen, ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO tokens (game_id, player, location, placed_on) VALUES (?, ?, ?, ?)",
		gameID, int(p.Player), p.Cell, p.PlacedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("game %d cell %d: %w", gameID, p.Cell, ErrCellTaken)
		}
		return fmt.Errorf("failed to insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMoves returns a game's placements in the order they were made.
func (db *DB) ListMoves(ctx context.Context, gameID int64) ([]game.Placement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT location, player, placed_on FROM tokens WHERE game_id = ? ORDER BY token_id",
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []game.Placement
	for rows.Next() {
		var p game.Placement
		var player int
		if err := rows.Scan(&p.Cell, &player, &p.PlacedAt); err != nil {
			return nil, err
		}
		p.Player = game.Player(player)
		moves = append(moves, p)
	}
	return moves, rows.Err()
}

// LoadStatus returns the cached status of a game.
func (db *DB) LoadStatus(ctx context.Context, gameID int64) (game.Status, error) {
	g, err := db.LoadGame(ctx, gameID)
	if err != nil {
		return game.Status{}, err
	}
	return g.Status, nil
}

// SaveStatus overwrites the cached status of a game.
func (db *DB) SaveStatus(ctx context.Context, gameID int64, status game.Status) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, "UPDATE games SET game_status_json = ? WHERE game_id = ?", string(raw), gameID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %d: %w", gameID, ErrNotFound)
	}
	return nil
}

// Stats returns row counts for each table.
func (db *DB) Stats(ctx context.Context) (boards, games, tokens int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM boards").Scan(&boards)
	if err != nil {
		return
	}
	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&games)
	if err != nil {
		return
	}
	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tokens").Scan(&tokens)
	return
}
