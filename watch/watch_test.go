package watch

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/geometry"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/referee"
	"github.com/brensch/voro/server"
	"github.com/brensch/voro/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
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

func testDetail() server.GameDetail {
	return server.GameDetail{
		Game: server.GameSummary{
			ID: 1, Name: "alice vs bob", BoardID: 1, Player1: "alice", Player2: "bob",
			Status: game.Status{ToMove: game.Player2, MovesLeft: 2},
		},
		Moves: []server.Move{{Cell: 2, Color: game.Player1}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Events(t *testing.T) {
	m := NewModel(testDetail(), wheelBoard(6), "", nil, nil)
	assert.Equal(t, game.Player1, m.cells[2])
	assert.Contains(t, m.View(), "alice vs bob")
	assert.NotContains(t, m.View(), "place as")

	next, _ := m.Update(eventMsg{ev: notify.NewMoveEvent(3, game.Player2)})
	m = next.(Model)
	assert.Equal(t, game.Player2, m.cells[3])

	two := 2
	next, _ = m.Update(eventMsg{ev: notify.NewStatusEvent(game.Status{ToMove: game.Player2, MovesLeft: 1, BorderFull: true, ConnectionsRemaining: &two})})
	m = next.(Model)
	assert.Contains(t, m.View(), "2 connections remaining")

	next, _ = m.Update(eventMsg{ev: notify.NewStatusEvent(game.Status{GameComplete: true, Score1: 3, Score2: -1})})
	m = next.(Model)
	assert.Contains(t, m.View(), "final score")
	assert.Contains(t, m.View(), "3 : -1")

	// Out of range moves from a confused server are ignored.
	next, _ = m.Update(eventMsg{ev: notify.NewMoveEvent(99, game.Player1)})
	m = next.(Model)
	assert.Len(t, m.cells, 7)
}

func TestModel_Closed(t *testing.T) {
	m := NewModel(testDetail(), wheelBoard(6), "", nil, nil)
	next, cmd := m.Update(closedMsg{err: io.ErrUnexpectedEOF})
	assert.Nil(t, cmd)
	assert.Contains(t, next.View(), "disconnected: unexpected EOF")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(testDetail(), wheelBoard(6), "", nil, nil)
	for _, k := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestModel_Colour(t *testing.T) {
	detail := testDetail()
	assert.Equal(t, game.Player1, NewModel(detail, wheelBoard(6), "alice", nil, nil).Colour())
	assert.Equal(t, game.Player2, NewModel(detail, wheelBoard(6), "bob", nil, nil).Colour())

	detail.Game.Player2 = ""
	assert.Equal(t, game.Player2, NewModel(detail, wheelBoard(6), "carol", nil, nil).Colour(), "open seat follows the turn")
}

func TestModel_PlaceToken(t *testing.T) {
	var sent []notify.PlayRequest
	send := func(req notify.PlayRequest) error {
		sent = append(sent, req)
		return nil
	}
	var m tea.Model = NewModel(testDetail(), wheelBoard(6), "bob", nil, send)
	for _, k := range []string{"1", "2", "backspace", "x", "4"} {
		m, _ = m.Update(key(k))
	}
	assert.Contains(t, m.View(), "> 14")

	m, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Equal(t, []notify.PlayRequest{{Action: notify.ActionPlayToken, Location: 14, Color: game.Player2}}, sent)
	assert.Equal(t, "", m.(Model).input)

	_, cmd = m.Update(key("enter"))
	assert.Nil(t, cmd, "nothing typed")
}

func TestClient_FetchAndStream(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	boardID, err := db.SaveBoard(ctx, "wheel", wheelBoard(6))
	require.NoError(t, err)

	hub := notify.NewHub(notify.DefaultBuffer, quietLogger())
	ref, err := referee.New(db, db, hub, 0, quietLogger())
	require.NoError(t, err)
	g, err := ref.CreateGame(ctx, "", boardID, "", "")
	require.NoError(t, err)
	_, err = ref.PlayToken(ctx, g.ID, "", 0, game.Player1)
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(db, ref, hub, "", quietLogger()).Handler())
	defer srv.Close()
	defer hub.Close()

	config := DefaultConfig()
	config.BaseURL = srv.URL
	config.GameID = g.ID
	config.Player = "carol"
	client := NewClient(config)

	url, err := client.socketURL()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "ws://"))
	assert.True(t, strings.HasSuffix(url, "/ws?player=carol"))

	detail, board, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, board.Len())
	require.Len(t, detail.Moves, 1)
	assert.Equal(t, game.Player2, detail.Game.Status.ToMove)

	conn, err := client.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(g.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	events := make(chan notify.Event, 4)
	errc := make(chan error, 1)
	go func() { errc <- Stream(conn, time.Second, events) }()

	_, err = ref.PlayToken(ctx, g.ID, "", 1, game.Player2)
	require.NoError(t, err)

	m := NewModel(detail, board, "", listener(events, errc), nil)
	next, cmd := m.Update(m.Init()())
	next, _ = next.Update(cmd())
	assert.Equal(t, game.Player2, next.(Model).cells[1])
	assert.Equal(t, game.Status{ToMove: game.Player2, MovesLeft: 1}, next.(Model).status)

	hub.Close()
	msg := cmd()
	assert.IsType(t, closedMsg{}, msg)
}

func TestClient_FetchMissingGame(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	hub := notify.NewHub(notify.DefaultBuffer, quietLogger())
	ref, err := referee.New(db, db, hub, 0, quietLogger())
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(db, ref, hub, "", quietLogger()).Handler())
	defer srv.Close()

	config := DefaultConfig()
	config.BaseURL = srv.URL
	config.GameID = 5
	_, _, err = NewClient(config).Fetch(ctx)
	assert.ErrorContains(t, err, "404")
}
