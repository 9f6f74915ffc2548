package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/voro/game"
)

// Turn tracks who is placing and how many placements they have left.
type Turn struct {
	ToMove    game.Player
	MovesLeft int
}

// InitialTurn gives the first player a single placement.
func InitialTurn() Turn {
	return Turn{ToMove: game.Player1, MovesLeft: 1}
}

// TurnOf extracts the turn fields of a status.
func TurnOf(s game.Status) Turn {
	return Turn{ToMove: s.ToMove, MovesLeft: s.MovesLeft}
}

// Advance consumes one placement. When the mover runs out, the other player
// gets two.
func (t Turn) Advance() Turn {
	t.MovesLeft--
	if t.MovesLeft <= 0 {
		t.ToMove = t.ToMove.Other()
		t.MovesLeft = 2
	}
	return t
}

// Reason explains why a placement was refused. The zero value means the
// placement is legal.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonOutOfRange     Reason = "out-of-range"
	ReasonGameComplete   Reason = "game-complete"
	ReasonOccupied       Reason = "occupied"
	ReasonNotYourTurn    Reason = "not-your-turn"
	ReasonNotParticipant Reason = "not-participant"
)

var ErrIllegalPlacement = errors.New("rules: illegal placement")

// CheckPlacement validates a placement of color on cell against the current
// status and occupancy. Once the game is complete every placement is
// rejected with ReasonGameComplete.
func CheckPlacement(s game.Status, cells []game.Player, cell int, color game.Player) Reason {
	if cell < 0 || cell >= len(cells) {
		return ReasonOutOfRange
	}
	if s.GameComplete {
		return ReasonGameComplete
	}
	if cells[cell] != game.Empty {
		return ReasonOccupied
	}
	if !color.Valid() || s.ToMove != color {
		return ReasonNotYourTurn
	}
	return ReasonNone
}

// Play applies a placement to cells in place and returns the next status.
// A non-empty Reason means nothing was changed.
func Play(b *game.Board, s game.Status, cells []game.Player, cell int, color game.Player) (game.Status, Reason) {
	if reason := CheckPlacement(s, cells, cell, color); reason != ReasonNone {
		return s, reason
	}
	cells[cell] = color

	t := TurnOf(s).Advance()
	s.ToMove, s.MovesLeft = t.ToMove, t.MovesLeft
	return Evaluate(b, cells).Apply(s), ReasonNone
}

// Replay recomputes a game's status from scratch.
func Replay(b *game.Board, placements []game.Placement) (game.Status, error) {
	s := game.InitialStatus()
	cells := make([]game.Player, b.Len())
	for i, p := range placements {
		next, reason := Play(b, s, cells, p.Cell, p.Player)
		if reason != ReasonNone {
			return s, fmt.Errorf("%w: placement %d (cell %d, player %d): %s", ErrIllegalPlacement, i, p.Cell, p.Player, reason)
		}
		s = next
	}
	return s, nil
}
