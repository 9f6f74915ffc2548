package notify

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Handler processes one client message. A non-nil reply is written back to
// the sending connection only.
type Handler func(ctx context.Context, msg []byte) (reply []byte)

// Pump runs a websocket connection for sub until the client goes away, the
// subscriber is dropped or ctx ends. It closes conn before returning.
func Pump(ctx context.Context, conn *websocket.Conn, sub *Subscriber, handle Handler, log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"game": sub.GameID, "subscriber": sub.ID})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan []byte, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ctx, conn, sub, replies, log)
	}()

	readPump(ctx, conn, handle, replies, log)
	cancel()
	<-done
}

func readPump(ctx context.Context, conn *websocket.Conn, handle Handler, replies chan<- []byte, log logrus.FieldLogger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		if handle == nil {
			continue
		}
		reply := handle(ctx, msg)
		if reply == nil {
			continue
		}
		select {
		case replies <- reply:
		default:
			log.Warn("reply queue full, discarding reply")
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, sub *Subscriber, replies <-chan []byte, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(kind int, data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(kind, data); err != nil {
			log.WithError(err).Debug("websocket write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "dropped"))
				return
			}
			if !write(websocket.TextMessage, msg) {
				return
			}
		case reply := <-replies:
			if !write(websocket.TextMessage, reply) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
