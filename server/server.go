// Package server exposes boards and games over HTTP and carries live game
// events over websockets.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/brensch/voro/builder"
	"github.com/brensch/voro/game"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/referee"
	"github.com/brensch/voro/store"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Catalog lists what the store holds.
type Catalog interface {
	ListBoards(ctx context.Context) ([]store.BoardInfo, error)
	ListGames(ctx context.Context) ([]game.Game, error)
}

// Server holds shared state for HTTP handlers.
type Server struct {
	catalog   Catalog
	ref       *referee.Referee
	hub       *notify.Hub
	staticDir string
	upgrader  websocket.Upgrader
	log       logrus.FieldLogger
}

// New creates a Server. Live events reach sockets through hub, which must be
// the hub the referee's notifier delivers to.
func New(catalog Catalog, ref *referee.Referee, hub *notify.Hub, staticDir string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		catalog:   catalog,
		ref:       ref,
		hub:       hub,
		staticDir: staticDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// RegisterRoutes sets up all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/boards", s.handleBoards)
	mux.HandleFunc("GET /api/boards/{id}", s.handleBoard)
	mux.HandleFunc("GET /api/boards/{id}/svg", s.handleBoardSVG)
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.HandleFunc("POST /api/games", s.handleNewGame)
	mux.HandleFunc("GET /api/games/{id}", s.handleGame)
	mux.HandleFunc("GET /games/{id}/ws", s.handleSocket)
	if strings.TrimSpace(s.staticDir) != "" {
		mux.Handle("/", newSPAHandler(s.staticDir))
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return withCORS(mux)
}

// ListenAndServe serves until ctx ends, then shuts down and closes the hub so
// open sockets are released.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("listen", addr).Info("voro listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.catalog.ListBoards(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]BoardSummary, 0, len(boards))
	for _, b := range boards {
		out = append(out, BoardSummary{ID: b.ID, Name: b.Name, Cells: b.Cells, CreatedAt: b.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "bad board id", http.StatusBadRequest)
		return
	}
	b, err := s.ref.Board(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBoardSVG(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "bad board id", http.StatusBadRequest)
		return
	}
	b, err := s.ref.Board(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	builder.RenderSVG(&buf, b)
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.catalog.ListGames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, summarize(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req NewGameRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	g, err := s.ref.CreateGame(r.Context(), strings.TrimSpace(req.Name), req.BoardID, req.Player1, req.Player2)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(*g))
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	g, moves, err := s.ref.Game(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail := GameDetail{Game: summarize(*g), Moves: make([]Move, 0, len(moves))}
	for _, m := range moves {
		detail.Moves = append(detail.Moves, Move{Cell: m.Cell, Color: m.Player, PlacedAt: m.PlacedAt})
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleSocket subscribes the connection to a game's events. The player query
// parameter is the identity placements are attributed to.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	if _, err := s.ref.Status(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	player := strings.TrimSpace(r.URL.Query().Get("player"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	sub := s.hub.Subscribe(id, player)
	defer s.hub.Unsubscribe(sub)

	log := s.log.WithFields(logrus.Fields{"game": id, "actor": player, "remote": r.RemoteAddr})
	log.Info("socket opened")
	notify.Pump(r.Context(), conn, sub, s.placements(id, player, log), log)
	log.Info("socket closed")
}

// placements handles PLAY_TOKEN requests from one socket. Rejections are
// answered to that socket only.
func (s *Server) placements(gameID int64, player string, log logrus.FieldLogger) notify.Handler {
	return func(ctx context.Context, msg []byte) []byte {
		req, err := notify.ParseRequest(msg)
		if err != nil {
			log.WithError(err).WithField("raw", string(msg)).Warn("unknown message")
			return nil
		}
		out, err := s.ref.PlayToken(ctx, gameID, player, req.Location, req.Color)
		if err != nil {
			log.WithError(err).Error("placement failed")
			return nil
		}
		if out.Accepted {
			return nil
		}
		reply, err := json.Marshal(notify.NewRejectedEvent(req.Location, req.Color, string(out.Reason)))
		if err != nil {
			log.WithError(err).Error("encode rejection")
			return nil
		}
		return reply
	}
}
