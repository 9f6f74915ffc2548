// Package game defines the core state types for the voro connection game.
//
// A Game references one immutable Board and carries an ordered list of
// placements. Its Status is a cache derived from the board and the
// placements; it is recomputed after every accepted placement and never
// edited by hand.
package game

import "time"

// Player identifies a colour on the board. Empty marks an unoccupied cell.
type Player int

const (
	Empty   Player = 0
	Player1 Player = 1
	Player2 Player = 2
)

// Other returns the opposing colour. Empty maps to Empty.
func (p Player) Other() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return Empty
	}
}

// Valid reports whether p is one of the two playing colours.
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

// Placement is a single token put on the board.
type Placement struct {
	Cell     int
	Player   Player
	PlacedAt time.Time
}

// Status is the derived state of a game.
//
// ConnectionsRemaining is only present once the border ring is full. The
// scores are only meaningful once GameComplete is set.
type Status struct {
	ToMove               Player `json:"to_move"`
	MovesLeft            int    `json:"moves_left"`
	BorderFull           bool   `json:"border_full"`
	ConnectionsRemaining *int   `json:"connections_remaining,omitempty"`
	GameComplete         bool   `json:"game_complete"`
	Score1               int    `json:"score_1"`
	Score2               int    `json:"score_2"`
}

// Equal compares two statuses by value.
func (s Status) Equal(o Status) bool {
	if (s.ConnectionsRemaining == nil) != (o.ConnectionsRemaining == nil) {
		return false
	}
	if s.ConnectionsRemaining != nil && *s.ConnectionsRemaining != *o.ConnectionsRemaining {
		return false
	}
	s.ConnectionsRemaining, o.ConnectionsRemaining = nil, nil
	return s == o
}

// InitialStatus is the status of a game without placements: the first
// player opens with a single token.
func InitialStatus() Status {
	return Status{ToMove: Player1, MovesLeft: 1}
}

// Game is a match between two players on a stored board.
type Game struct {
	ID        int64
	Name      string
	BoardID   int64
	Player1   string
	Player2   string
	Status    Status
	CreatedAt time.Time
}

// Participant returns the identity registered for colour p.
func (g *Game) Participant(p Player) string {
	if p == Player1 {
		return g.Player1
	}
	if p == Player2 {
		return g.Player2
	}
	return ""
}

// Occupancy expands placements into a per-cell colour slice of length n.
// Placements outside [0, n) are ignored.
func Occupancy(n int, placements []Placement) []Player {
	cells := make([]Player, n)
	for _, p := range placements {
		if p.Cell < 0 || p.Cell >= n {
			continue
		}
		cells[p.Cell] = p.Player
	}
	return cells
}
