package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/geometry"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func wheelBoard(n int) *game.Board {
	b := &game.Board{
		Tokens:    append(geometry.Ring(n, game.BorderRadius), r2.Point{}),
		NumBorder: n,
	}
	for i := 0; i < n; i++ {
		b.Edges = append(b.Edges, game.NewEdge(i, (i+1)%n), game.NewEdge(i, n))
	}
	return b
}

func TestBoardRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	b := wheelBoard(6)
	id, err := db.SaveBoard(ctx, "wheel", b)
	require.NoError(t, err)

	loaded, err := db.LoadBoard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b.NumBorder, loaded.NumBorder)
	assert.Equal(t, b.Edges, loaded.Edges)
	assert.Len(t, loaded.Tokens, 7)

	boards, err := db.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "wheel", boards[0].Name)
	assert.Equal(t, 7, boards[0].Cells)
}

func TestSaveBoard_RejectsInvalid(t *testing.T) {
	db := openTestDB(t)
	b := wheelBoard(6)
	b.Edges = append(b.Edges, game.Edge{3, 3})
	_, err := db.SaveBoard(context.Background(), "broken", b)
	assert.ErrorIs(t, err, game.ErrSelfLoop)
}

func TestLoadBoard_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadBoard(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadBoard_RejectsStoredGarbage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO boards (board_name, board_json, created_at) VALUES (?, ?, ?)",
		"legacy", `{"tokens": [[20, 0], [-20, 0]], "edges": [[0, 1]]}`, time.Now())
	require.NoError(t, err)

	_, err = db.LoadBoard(ctx, 1)
	assert.ErrorIs(t, err, game.ErrMissingBorder)
}

func TestGameLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	boardID, err := db.SaveBoard(ctx, "wheel", wheelBoard(6))
	require.NoError(t, err)

	g := &game.Game{Name: "alice vs bob", BoardID: boardID, Player1: "alice", Player2: "bob", Status: game.InitialStatus()}
	id, err := db.CreateGame(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, id, g.ID)

	loaded, err := db.LoadGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Player1)
	assert.Equal(t, "bob", loaded.Player2)
	assert.Equal(t, game.InitialStatus(), loaded.Status)

	next := game.Status{ToMove: game.Player2, MovesLeft: 2}
	require.NoError(t, db.AppendMove(ctx, id, 0, game.Placement{Cell: 3, Player: game.Player1}, next))

	moves, err := db.ListMoves(ctx, id)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, 3, moves[0].Cell)
	assert.Equal(t, game.Player1, moves[0].Player)
	assert.False(t, moves[0].PlacedAt.IsZero())

	status, err := db.LoadStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, next, status)

	err = db.AppendMove(ctx, id, 1, game.Placement{Cell: 3, Player: game.Player2}, game.Status{ToMove: game.Player2, MovesLeft: 1})
	assert.ErrorIs(t, err, ErrCellTaken)

	// the failed append must not leak its status
	status, err = db.LoadStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, next, status)

	two := 2
	full := game.Status{ToMove: game.Player2, MovesLeft: 1, BorderFull: true, ConnectionsRemaining: &two}
	require.NoError(t, db.SaveStatus(ctx, id, full))
	status, err = db.LoadStatus(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, status.ConnectionsRemaining)
	assert.Equal(t, 2, *status.ConnectionsRemaining)

	games, err := db.ListGames(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 1)

	boards, gamesCount, tokens, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), boards)
	assert.Equal(t, int64(1), gamesCount)
	assert.Equal(t, int64(1), tokens)
}

func TestCreateGame_UnknownBoard(t *testing.T) {
	db := openTestDB(t)
	_, err := db.CreateGame(context.Background(), &game.Game{Name: "x", BoardID: 9, Status: game.InitialStatus()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownGame(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.LoadGame(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.SaveStatus(ctx, 5, game.InitialStatus()), ErrNotFound)
	assert.ErrorIs(t, db.AppendMove(ctx, 5, 0, game.Placement{Cell: 0, Player: game.Player1}, game.InitialStatus()), ErrNotFound)
}

func TestSameCellInDifferentGames(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	boardID, err := db.SaveBoard(ctx, "wheel", wheelBoard(6))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		g := &game.Game{Name: "g", BoardID: boardID, Status: game.InitialStatus()}
		_, err := db.CreateGame(ctx, g)
		require.NoError(t, err)
		require.NoError(t, db.AppendMove(ctx, g.ID, 0, game.Placement{Cell: 0, Player: game.Player1}, game.InitialStatus()))
	}
}

func TestAppendMove_StaleReadAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "voro.db")
	a, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	boardID, err := a.SaveBoard(ctx, "wheel", wheelBoard(6))
	require.NoError(t, err)
	g := &game.Game{Name: "shared", BoardID: boardID, Status: game.InitialStatus()}
	_, err = a.CreateGame(ctx, g)
	require.NoError(t, err)

	// both handles read the empty game, b writes first
	afterB := game.Status{ToMove: game.Player2, MovesLeft: 2}
	require.NoError(t, b.AppendMove(ctx, g.ID, 0, game.Placement{Cell: 1, Player: game.Player1}, afterB))

	err = a.AppendMove(ctx, g.ID, 0, game.Placement{Cell: 2, Player: game.Player1}, game.Status{ToMove: game.Player2, MovesLeft: 2})
	assert.ErrorIs(t, err, ErrConflict)

	moves, err := a.ListMoves(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, 1, moves[0].Cell)
	status, err := a.LoadStatus(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, afterB, status)

	// a fresh read succeeds
	require.NoError(t, a.AppendMove(ctx, g.ID, 1, game.Placement{Cell: 2, Player: game.Player2}, game.Status{ToMove: game.Player2, MovesLeft: 1}))
}
