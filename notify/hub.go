package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the number of undelivered events a subscriber may hold
// before it is dropped.
const DefaultBuffer = 32

// Subscriber receives the events of one game.
type Subscriber struct {
	ID     uuid.UUID
	GameID int64
	Player string

	send      chan []byte
	closeOnce sync.Once
}

// Messages yields encoded events. It is closed when the subscriber is
// unsubscribed or dropped.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Hub keeps a registry of subscribers per game. Delivery never blocks: a
// subscriber that cannot keep up is dropped and must resubscribe.
type Hub struct {
	mu     sync.RWMutex
	games  map[int64]map[uuid.UUID]*Subscriber
	buffer int
	log    logrus.FieldLogger
}

func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		games:  make(map[int64]map[uuid.UUID]*Subscriber),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new subscriber for gameID.
func (h *Hub) Subscribe(gameID int64, player string) *Subscriber {
	s := &Subscriber{
		ID:     uuid.New(),
		GameID: gameID,
		Player: player,
		send:   make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.games[gameID]
	if !ok {
		subs = make(map[uuid.UUID]*Subscriber)
		h.games[gameID] = subs
	}
	subs[s.ID] = s
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	h.removeLocked(s)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(s *Subscriber) {
	if subs, ok := h.games[s.GameID]; ok {
		delete(subs, s.ID)
		if len(subs) == 0 {
			delete(h.games, s.GameID)
		}
	}
	s.close()
}

// Subscribers returns the number of live subscribers of gameID.
func (h *Hub) Subscribers(gameID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}

// Broadcast delivers payload to every subscriber of gameID and returns how
// many received it.
func (h *Hub) Broadcast(gameID int64, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, s := range h.games[gameID] {
		select {
		case s.send <- payload:
			delivered++
		default:
			h.log.WithFields(logrus.Fields{
				"game":       gameID,
				"subscriber": s.ID,
				"player":     s.Player,
			}).Warn("subscriber too slow, dropping")
			h.removeLocked(s)
		}
	}
	return delivered
}

// Notify encodes ev and broadcasts it to the local subscribers of gameID.
func (h *Hub) Notify(_ context.Context, gameID int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventAction(), err)
	}
	h.Broadcast(gameID, payload)
	return nil
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.games {
		for _, s := range subs {
			h.removeLocked(s)
		}
	}
}
