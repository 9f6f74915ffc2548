package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/voro/game"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func receive(t *testing.T, s *Subscriber) []byte {
	t.Helper()
	select {
	case msg, ok := <-s.Messages():
		require.True(t, ok, "subscriber closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(NewMoveEvent(12, game.Player2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"PLAY_TOKEN","location":12,"color":2}`, string(data))

	data, err = json.Marshal(NewStatusEvent(game.InitialStatus()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"NEW_GAME_STATUS","status":{"to_move":1,"moves_left":1,"border_full":false,"game_complete":false,"score_1":0,"score_2":0}}`, string(data))

	data, err = json.Marshal(NewRejectedEvent(3, game.Player1, "occupied"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"REJECTED","location":3,"color":1,"reason":"occupied"}`, string(data))
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"action":"PLAY_TOKEN","location":4,"color":1}`))
	require.NoError(t, err)
	assert.Equal(t, NewMoveEvent(4, game.Player1), ev)

	ev, err = DecodeEvent([]byte(`{"action":"NEW_GAME_STATUS","status":{"to_move":2,"moves_left":2}}`))
	require.NoError(t, err)
	status, ok := ev.(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, game.Player2, status.Status.ToMove)

	_, err = DecodeEvent([]byte(`{"action":"DANCE"}`))
	assert.Error(t, err)
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"action":"PLAY_TOKEN","location":7,"color":2}`))
	require.NoError(t, err)
	assert.Equal(t, 7, req.Location)
	assert.Equal(t, game.Player2, req.Color)

	_, err = ParseRequest([]byte(`{"action":"RESIGN"}`))
	assert.Error(t, err)
	_, err = ParseRequest([]byte(`{`))
	assert.Error(t, err)
}

func TestHub_FanOutPerGame(t *testing.T) {
	hub := NewHub(4, quietLogger())
	a := hub.Subscribe(1, "alice")
	b := hub.Subscribe(1, "bob")
	other := hub.Subscribe(2, "carol")

	require.NoError(t, hub.Notify(context.Background(), 1, NewMoveEvent(5, game.Player1)))

	assert.JSONEq(t, `{"action":"PLAY_TOKEN","location":5,"color":1}`, string(receive(t, a)))
	assert.JSONEq(t, `{"action":"PLAY_TOKEN","location":5,"color":1}`, string(receive(t, b)))
	select {
	case msg := <-other.Messages():
		t.Fatalf("other game received %s", msg)
	default:
	}
	assert.Equal(t, 2, hub.Subscribers(1))
	assert.Equal(t, 1, hub.Subscribers(2))
}

func TestHub_OrderPreserved(t *testing.T) {
	hub := NewHub(4, quietLogger())
	s := hub.Subscribe(1, "")
	ctx := context.Background()
	require.NoError(t, hub.Notify(ctx, 1, NewMoveEvent(5, game.Player1)))
	require.NoError(t, hub.Notify(ctx, 1, NewStatusEvent(game.Status{ToMove: game.Player2, MovesLeft: 2})))

	first, err := DecodeEvent(receive(t, s))
	require.NoError(t, err)
	second, err := DecodeEvent(receive(t, s))
	require.NoError(t, err)
	assert.Equal(t, ActionPlayToken, first.EventAction())
	assert.Equal(t, ActionNewGameStatus, second.EventAction())
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1, quietLogger())
	slow := hub.Subscribe(1, "slow")
	fast := hub.Subscribe(1, "fast")

	assert.Equal(t, 2, hub.Broadcast(1, []byte("one")))
	receive(t, fast)
	assert.Equal(t, 1, hub.Broadcast(1, []byte("two")))

	assert.Equal(t, 1, hub.Subscribers(1))
	assert.Equal(t, "one", string(receive(t, slow)))
	_, ok := <-slow.Messages()
	assert.False(t, ok, "dropped subscriber should be closed")
	assert.Equal(t, "two", string(receive(t, fast)))
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	hub := NewHub(0, quietLogger())
	s := hub.Subscribe(3, "x")
	hub.Unsubscribe(s)
	hub.Unsubscribe(s)
	assert.Equal(t, 0, hub.Subscribers(3))
	assert.Equal(t, 0, hub.Broadcast(3, []byte("nobody")))

	t2 := hub.Subscribe(3, "y")
	hub.Close()
	_, ok := <-t2.Messages()
	assert.False(t, ok)
}

func TestRedisBridge_Forward(t *testing.T) {
	hub := NewHub(4, quietLogger())
	s := hub.Subscribe(9, "")
	bridge := NewRedisBridge(nil, hub, quietLogger())

	payload := []byte(`{"action":"PLAY_TOKEN","location":1,"color":2}`)
	foreign, err := json.Marshal(envelope{Origin: "elsewhere", Event: payload})
	require.NoError(t, err)
	assert.True(t, bridge.forward(channelFor(9), foreign))
	assert.JSONEq(t, string(payload), string(receive(t, s)))

	own, err := json.Marshal(envelope{Origin: bridge.origin, Event: payload})
	require.NoError(t, err)
	assert.False(t, bridge.forward(channelFor(9), own))
	assert.False(t, bridge.forward("other:9", foreign))
	assert.False(t, bridge.forward(channelFor(9), []byte("garbage")))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "voro:games:42", channelFor(42))
	id, err := gameFromChannel("voro:games:42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	_, err = gameFromChannel("voro:games:x")
	assert.Error(t, err)
}

func TestPump_BroadcastAndReply(t *testing.T) {
	hub := NewHub(8, quietLogger())
	subscribed := make(chan *Subscriber, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := hub.Subscribe(1, "alice")
		defer hub.Unsubscribe(sub)
		subscribed <- sub
		Pump(r.Context(), conn, sub, func(_ context.Context, msg []byte) []byte {
			return []byte(`{"echo":` + string(msg) + `}`)
		}, quietLogger())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("server never subscribed")
	}

	hub.Broadcast(1, []byte(`{"action":"PLAY_TOKEN","location":2,"color":1}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"PLAY_TOKEN","location":2,"color":1}`, string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`1`)))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":1}`, string(msg))
}
