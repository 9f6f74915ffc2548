package watch

import (
	"context"
	"sync"
	"time"

	"github.com/brensch/voro/notify"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// listener turns a stream of events into bubbletea messages.
func listener(events <-chan notify.Event, errc <-chan error) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{err: <-errc}
		}
		return eventMsg{ev: ev}
	}
}

// Run fetches the game, opens its socket and runs the terminal UI until the
// user quits.
func Run(ctx context.Context, config Config, log logrus.FieldLogger) error {
	client := NewClient(config)
	detail, board, err := client.Fetch(ctx)
	if err != nil {
		return err
	}
	conn, err := client.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.WithField("game", config.GameID).Debug("watching game")

	events := make(chan notify.Event, notify.DefaultBuffer)
	errc := make(chan error, 1)
	go func() {
		errc <- Stream(conn, config.ReadTimeout, events)
	}()

	var send Sender
	if config.Player != "" {
		var mu sync.Mutex
		send = func(req notify.PlayRequest) error {
			mu.Lock()
			defer mu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(config.ConnectTimeout))
			return conn.WriteJSON(req)
		}
	}

	model := NewModel(detail, board, config.Player, listener(events, errc), send)
	_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
	return err
}
