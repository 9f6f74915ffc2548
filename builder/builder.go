package builder

import (
	"fmt"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/geometry"
	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
)

// Build triangulates ring followed by interior and returns the resulting
// board. The first len(ring) tokens are the border cells.
func Build(ring, interior []r2.Point) (*game.Board, error) {
	tokens := make([]r2.Point, 0, len(ring)+len(interior))
	tokens = append(tokens, ring...)
	tokens = append(tokens, interior...)

	tr, err := geometry.Triangulate(tokens)
	if err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}

	b := &game.Board{
		Tokens:    tokens,
		Edges:     tr.Edges(),
		NumBorder: len(ring),
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}
	return b, nil
}

// Generate relaxes a fresh interior and builds a board from it.
func Generate(opts Options, log logrus.FieldLogger) (*game.Board, RelaxStats, error) {
	interior, stats, err := Relax(opts, log)
	if err != nil {
		return nil, stats, err
	}
	b, err := Build(geometry.Ring(opts.Border, game.BorderRadius), interior)
	if err != nil {
		return nil, stats, err
	}
	return b, stats, nil
}
