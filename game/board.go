package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// BorderRadius is the radius of the circle the border cells sit on.
const BorderRadius = 20.0

// borderTolerance bounds how far a border token may stray from BorderRadius.
const borderTolerance = 1e-6

var (
	ErrInvalidBoard    = errors.New("game: invalid board")
	ErrMissingBorder   = fmt.Errorf("%w: num_border is missing", ErrInvalidBoard)
	ErrBorderCount     = fmt.Errorf("%w: num_border out of range", ErrInvalidBoard)
	ErrEdgeOutOfRange  = fmt.Errorf("%w: edge endpoint out of range", ErrInvalidBoard)
	ErrSelfLoop        = fmt.Errorf("%w: self-loop edge", ErrInvalidBoard)
	ErrNotCanonical    = fmt.Errorf("%w: edge not in (min, max) order", ErrInvalidBoard)
	ErrDuplicateEdge   = fmt.Errorf("%w: duplicate edge", ErrInvalidBoard)
	ErrDuplicateBorder = fmt.Errorf("%w: duplicate border token", ErrInvalidBoard)
	ErrBorderRing      = fmt.Errorf("%w: border token off the border ring", ErrInvalidBoard)
)

// Edge is an undirected adjacency between two cells, smaller id first.
type Edge [2]int

// NewEdge returns the canonical edge between i and j.
func NewEdge(i, j int) Edge {
	if i > j {
		i, j = j, i
	}
	return Edge{i, j}
}

// Board is the immutable geometry and adjacency graph games are played on.
// Tokens [0, NumBorder) form the border ring; the rest are interior cells.
type Board struct {
	Tokens    []r2.Point
	Edges     []Edge
	NumBorder int
}

// Len returns the number of cells.
func (b *Board) Len() int {
	return len(b.Tokens)
}

// IsBorder reports whether cell i is on the border ring.
func (b *Board) IsBorder(i int) bool {
	return i >= 0 && i < b.NumBorder
}

// Validate checks the structural invariants every consumer relies on.
func (b *Board) Validate() error {
	n := len(b.Tokens)
	if b.NumBorder <= 0 || b.NumBorder > n {
		return fmt.Errorf("%w: %d with %d tokens", ErrBorderCount, b.NumBorder, n)
	}

	seen := make(map[Edge]struct{}, len(b.Edges))
	for _, e := range b.Edges {
		i, j := e[0], e[1]
		if i < 0 || j < 0 || i >= n || j >= n {
			return fmt.Errorf("%w: (%d, %d) with %d tokens", ErrEdgeOutOfRange, i, j, n)
		}
		if i == j {
			return fmt.Errorf("%w: (%d, %d)", ErrSelfLoop, i, j)
		}
		if i > j {
			return fmt.Errorf("%w: (%d, %d)", ErrNotCanonical, i, j)
		}
		if _, ok := seen[e]; ok {
			return fmt.Errorf("%w: (%d, %d)", ErrDuplicateEdge, i, j)
		}
		seen[e] = struct{}{}
	}

	border := make(map[r2.Point]int, b.NumBorder)
	for i := 0; i < b.NumBorder; i++ {
		p := b.Tokens[i]
		if math.Abs(p.Norm()-BorderRadius) > borderTolerance*BorderRadius {
			return fmt.Errorf("%w: token %d at radius %.6f", ErrBorderRing, i, p.Norm())
		}
		if prev, ok := border[p]; ok {
			return fmt.Errorf("%w: tokens %d and %d", ErrDuplicateBorder, prev, i)
		}
		border[p] = i
	}
	return nil
}

// Neighbors returns the adjacency list of every cell.
func (b *Board) Neighbors() [][]int {
	adj := make([][]int, len(b.Tokens))
	for _, e := range b.Edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	return adj
}

// MinEdgeLength returns the length of the shortest edge, or 0 without edges.
func (b *Board) MinEdgeLength() float64 {
	shortest := math.Inf(1)
	for _, e := range b.Edges {
		if d := b.Tokens[e[0]].Sub(b.Tokens[e[1]]).Norm(); d < shortest {
			shortest = d
		}
	}
	if math.IsInf(shortest, 1) {
		return 0
	}
	return shortest
}

// boardDocument is the on-disk/on-wire shape of a Board.
type boardDocument struct {
	Tokens    [][2]float64 `json:"tokens"`
	Edges     []Edge       `json:"edges"`
	NumBorder *int         `json:"num_border"`
}

func (b Board) MarshalJSON() ([]byte, error) {
	doc := boardDocument{
		Tokens:    make([][2]float64, len(b.Tokens)),
		Edges:     b.Edges,
		NumBorder: &b.NumBorder,
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	for i, p := range b.Tokens {
		doc.Tokens[i] = [2]float64{p.X, p.Y}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a board document. Documents without num_border are
// rejected rather than guessed.
func (b *Board) UnmarshalJSON(data []byte) error {
	var doc boardDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.NumBorder == nil {
		return ErrMissingBorder
	}
	tokens := make([]r2.Point, len(doc.Tokens))
	for i, t := range doc.Tokens {
		tokens[i] = r2.Point{X: t[0], Y: t[1]}
	}
	b.Tokens = tokens
	b.Edges = doc.Edges
	b.NumBorder = *doc.NumBorder
	return nil
}

// ParseBoard decodes and validates a board document.
func ParseBoard(data []byte) (*Board, error) {
	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
