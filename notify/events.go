// Package notify fans game events out to live subscribers.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/brensch/voro/game"
)

const (
	ActionPlayToken     = "PLAY_TOKEN"
	ActionNewGameStatus = "NEW_GAME_STATUS"
	ActionRejected      = "REJECTED"
)

// Event is anything that can be sent to the subscribers of a game.
type Event interface {
	EventAction() string
}

// MoveEvent announces an accepted placement.
type MoveEvent struct {
	Action   string      `json:"action"`
	Location int         `json:"location"`
	Color    game.Player `json:"color"`
}

func NewMoveEvent(cell int, color game.Player) MoveEvent {
	return MoveEvent{Action: ActionPlayToken, Location: cell, Color: color}
}

func (e MoveEvent) EventAction() string { return e.Action }

// StatusEvent carries the status that follows a placement.
type StatusEvent struct {
	Action string      `json:"action"`
	Status game.Status `json:"status"`
}

func NewStatusEvent(s game.Status) StatusEvent {
	return StatusEvent{Action: ActionNewGameStatus, Status: s}
}

func (e StatusEvent) EventAction() string { return e.Action }

// RejectedEvent tells the requesting client why its placement was refused.
// It is never broadcast.
type RejectedEvent struct {
	Action   string      `json:"action"`
	Location int         `json:"location"`
	Color    game.Player `json:"color"`
	Reason   string      `json:"reason"`
}

func NewRejectedEvent(cell int, color game.Player, reason string) RejectedEvent {
	return RejectedEvent{Action: ActionRejected, Location: cell, Color: color, Reason: reason}
}

func (e RejectedEvent) EventAction() string { return e.Action }

// PlayRequest is the placement message a client sends.
type PlayRequest struct {
	Action   string      `json:"action"`
	Location int         `json:"location"`
	Color    game.Player `json:"color"`
}

// ParseRequest decodes a client message. Only PLAY_TOKEN is understood.
func ParseRequest(data []byte) (PlayRequest, error) {
	var req PlayRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	if req.Action != ActionPlayToken {
		return req, fmt.Errorf("unsupported action %q", req.Action)
	}
	return req, nil
}

// DecodeEvent decodes a broadcast payload back into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	var ev Event
	var err error
	switch head.Action {
	case ActionPlayToken:
		var e MoveEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case ActionNewGameStatus:
		var e StatusEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case ActionRejected:
		var e RejectedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("decode event: unknown action %q", head.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
