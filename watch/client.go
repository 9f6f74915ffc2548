// Package watch follows a live game from a terminal.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/server"
	"github.com/gorilla/websocket"
)

// Config holds spectator configuration
type Config struct {
	BaseURL        string
	GameID         int64
	Player         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:8080",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    90 * time.Second,
	}
}

// Client talks to a voro server on behalf of one game.
type Client struct {
	config Config
	http   *http.Client
}

func NewClient(config Config) *Client {
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.ConnectTimeout},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.config.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Fetch loads the game with its moves and the board it is played on.
func (c *Client) Fetch(ctx context.Context) (server.GameDetail, *game.Board, error) {
	var detail server.GameDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/api/games/%d", c.config.GameID), &detail); err != nil {
		return detail, nil, err
	}
	var b game.Board
	if err := c.getJSON(ctx, fmt.Sprintf("/api/boards/%d", detail.Game.BoardID), &b); err != nil {
		return detail, nil, err
	}
	return detail, &b, nil
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("%s/games/%d/ws", strings.TrimRight(u.Path, "/"), c.config.GameID)
	if c.config.Player != "" {
		u.RawQuery = url.Values{"player": {c.config.Player}}.Encode()
	}
	return u.String(), nil
}

// Dial opens the game's event socket.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.socketURL()
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.ConnectTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// Stream reads events from conn into out until the connection ends, then
// closes out. The returned error is nil on a normal close.
func Stream(conn *websocket.Conn, readTimeout time.Duration, out chan<- notify.Event) error {
	defer close(out)
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		ev, err := notify.DecodeEvent(message)
		if err != nil {
			continue
		}
		out <- ev
	}
}
