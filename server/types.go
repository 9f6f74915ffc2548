package server

import (
	"time"

	"github.com/brensch/voro/game"
)

type GameSummary struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	BoardID   int64       `json:"board_id"`
	Player1   string      `json:"player1"`
	Player2   string      `json:"player2"`
	Status    game.Status `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func summarize(g game.Game) GameSummary {
	return GameSummary{
		ID:        g.ID,
		Name:      g.Name,
		BoardID:   g.BoardID,
		Player1:   g.Player1,
		Player2:   g.Player2,
		Status:    g.Status,
		CreatedAt: g.CreatedAt,
	}
}

type Move struct {
	Cell     int         `json:"cell"`
	Color    game.Player `json:"color"`
	PlacedAt time.Time   `json:"placed_at"`
}

// GameDetail is the response of GET /api/games/{id}.
type GameDetail struct {
	Game  GameSummary `json:"game"`
	Moves []Move      `json:"moves"`
}

func (d GameDetail) Placements() []game.Placement {
	out := make([]game.Placement, len(d.Moves))
	for i, m := range d.Moves {
		out[i] = game.Placement{Cell: m.Cell, Player: m.Color, PlacedAt: m.PlacedAt}
	}
	return out
}

type NewGameRequest struct {
	Name    string `json:"name"`
	BoardID int64  `json:"board_id"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

type BoardSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Cells     int       `json:"cells"`
	CreatedAt time.Time `json:"created_at"`
}
