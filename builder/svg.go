package builder

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/brensch/voro/game"
)

// svgScale converts board units to integer SVG user units. The board spans
// [-22, 22] in both axes.
const (
	svgScale  = 100
	svgOffset = 22
	svgSize   = 2 * svgOffset * svgScale
)

func svgCoord(v float64) int {
	return int(math.Round((v + svgOffset) * svgScale))
}

// RenderSVG draws the board: one line per edge and one group per cell
// holding its circle. Cells with five neighbours are filled red and cells
// with seven blue, which makes relaxation defects easy to spot.
func RenderSVG(w io.Writer, b *game.Board) {
	canvas := svg.New(w)
	canvas.Startview(800, 800, 0, 0, svgSize, svgSize)

	canvas.Gid("edges")
	for _, e := range b.Edges {
		p, q := b.Tokens[e[0]], b.Tokens[e[1]]
		canvas.Line(svgCoord(p.X), svgCoord(p.Y), svgCoord(q.X), svgCoord(q.Y),
			`stroke="black"`, `stroke-width="0.5%"`)
	}
	canvas.Gend()

	r := int(math.Round(0.45 * b.MinEdgeLength() * svgScale))
	if r < 1 {
		r = 1
	}
	degree := make([]int, b.Len())
	for _, e := range b.Edges {
		degree[e[0]]++
		degree[e[1]]++
	}
	for i, p := range b.Tokens {
		fill := `fill-opacity="0"`
		switch degree[i] {
		case 5:
			fill = `fill="red"`
		case 7:
			fill = `fill="blue"`
		}
		canvas.Gid(fmt.Sprintf("cell-%d", i))
		canvas.Title(fmt.Sprintf("cell %d", i))
		canvas.Circle(svgCoord(p.X), svgCoord(p.Y), r, fill, `stroke="black"`)
		canvas.Gend()
	}
	canvas.End()
}
